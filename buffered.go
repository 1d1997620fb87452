package librux

import "errors"

// WriteBuffered writes p to buf, doubling the buffer's capacity (up to its
// hard cap) and retrying on *ErrOutOfCapacity instead of failing outright.
// This is the opt-in "double until C_max" policy spec.md §9 mentions as
// present in some source snapshots but never wired into the default
// Write path — callers that want automatic growth call this instead of
// buf.Write directly. Grounded on original_source/src/buf/buffered.rs's
// `buffer` helper, which doubles reserve-exact toward max_size and retries
// until either the write succeeds or capacity is already at the cap.
func WriteBuffered(buf *ByteBuffer, p []byte) error {
	for {
		_, err := buf.Write(p)
		if err == nil {
			return nil
		}
		var oc *ErrOutOfCapacity
		if !errors.As(err, &oc) {
			return err
		}
		cap := buf.Cap()
		if cap >= buf.maxCap {
			return err
		}
		grow := cap
		if cap+grow > buf.maxCap {
			grow = buf.maxCap - cap
		}
		buf.Reserve(grow)
		if buf.Cap() == cap {
			// Reserve couldn't add anything (already at maxCap); avoid
			// looping forever.
			return err
		}
	}
}
