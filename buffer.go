package librux

// ByteBuffer is a single-reader/single-writer byte arena with compaction
// semantics: a contiguous region plus two cursors, r <= w <= cap(buf).
// The readable region is buf[r:w]; the writable region is buf[w:cap].
// It is the per-connection I/O resource handed to application handlers
// (spec.md §3, §4.1) and is never safe for concurrent use — exactly one
// goroutine (the worker that owns the slot) touches a given ByteBuffer.
type ByteBuffer struct {
	buf     []byte
	r, w    int
	initCap int
	maxCap  int
}

// Mark is a snapshot of a ByteBuffer's cursors, taken by Mark and restored
// by ResetFrom. Used by parsers that need to rewind after a partial frame.
type Mark struct {
	r, w int
}

// NewByteBuffer constructs a buffer with initial and current capacity
// capacity. maxCapacity is the hard cap C_max that Write/WriteAt/Reserve
// will never grow past; if maxCapacity <= 0 it defaults to capacity (no
// growth allowed at all, matching the "fixed capacity" test scenarios in
// spec.md §8).
func NewByteBuffer(capacity int, maxCapacity int) *ByteBuffer {
	if capacity < 0 {
		capacity = 0
	}
	if maxCapacity <= 0 || maxCapacity < capacity {
		maxCapacity = capacity
	}
	return &ByteBuffer{
		buf:     make([]byte, capacity),
		initCap: capacity,
		maxCap:  maxCapacity,
	}
}

// Cap returns the buffer's current capacity (may be less than maxCap).
func (b *ByteBuffer) Cap() int { return len(b.buf) }

// Readable returns the number of bytes available to Read/Slice/Consume.
func (b *ByteBuffer) Readable() int { return b.w - b.r }

// Writable returns the number of bytes available in the writable region
// without triggering compaction.
func (b *ByteBuffer) Writable() int { return len(b.buf) - b.w }

// Write appends the full contents of p to the writable region. If p does
// not fit, it compacts (moves buf[r:w] to offset 0) when that makes room;
// if even compaction would not make room, it fails with *ErrOutOfCapacity
// and leaves the buffer exactly as it was (spec.md §4.1's compaction
// algorithm). Write
// never grows the buffer on its own — only an explicit Reserve does that
// (spec.md §9's Open Question: automatic growth stays opt-in). The empty
// slice is always a no-op success.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n == 0 {
		return 0, nil
	}
	if b.w+n > len(b.buf) {
		if b.w-b.r+n > len(b.buf) {
			return 0, &ErrOutOfCapacity{Capacity: len(b.buf)}
		}
		b.compact()
	}
	copy(b.buf[b.w:b.w+n], p)
	b.w += n
	return n, nil
}

// compact moves the readable region to offset 0, discarding the consumed
// prefix. A no-op when r is already 0.
func (b *ByteBuffer) compact() {
	if b.r == 0 {
		return
	}
	n := copy(b.buf, b.buf[b.r:b.w])
	b.w = n
	b.r = 0
}

// Read copies min(Readable(), len(dst)) bytes from the readable region
// into dst without advancing r. Never fails; returns the count copied.
func (b *ByteBuffer) Read(dst []byte) (int, error) {
	n := b.Readable()
	if n > len(dst) {
		n = len(dst)
	}
	if n == 0 {
		return 0, nil
	}
	copy(dst, b.buf[b.r:b.r+n])
	return n, nil
}

// Consume advances r by n. If r catches up to w, both cursors reset to 0
// and the backing array truncates back to the initial capacity, releasing
// any growth accrued via Reserve (spec.md §3).
func (b *ByteBuffer) Consume(n int) {
	b.r += n
	if b.r > b.w {
		b.r = b.w
	}
	if b.r == b.w {
		b.r, b.w = 0, 0
		if len(b.buf) != b.initCap {
			b.buf = make([]byte, b.initCap)
		}
	}
}

// Extend advances w by n, for callers that wrote directly into the slice
// returned by MutSlice (e.g. a recv(2) targeting the buffer's spare
// region) instead of going through Write.
func (b *ByteBuffer) Extend(n int) {
	b.w += n
	if b.w > len(b.buf) {
		b.w = len(b.buf)
	}
}

// Slice returns the readable region starting offset bytes past r.
func (b *ByteBuffer) Slice(offset int) []byte {
	start := b.r + offset
	if start > b.w {
		start = b.w
	}
	return b.buf[start:b.w]
}

// MutSlice returns a mutable view of the writable region starting offset
// bytes past w, for callers doing a direct syscall read into the buffer.
func (b *ByteBuffer) MutSlice(offset int) []byte {
	start := b.w + offset
	if start > len(b.buf) {
		start = len(b.buf)
	}
	return b.buf[start:]
}

// WriteAt inserts p at index inside the readable region (0 == r),
// shifting the suffix right. Overflow follows the same compact-then-fail
// rule as Write.
func (b *ByteBuffer) WriteAt(index int, p []byte) error {
	n := len(p)
	if n == 0 {
		return nil
	}
	at := b.r + index
	if at > b.w {
		at = b.w
	}
	if b.w+n > len(b.buf) {
		// Compaction shifts everything left by r, so recompute 'at'
		// relative to the new r=0 before compacting.
		shift := b.r
		b.compact()
		at -= shift
	}
	if b.w+n > len(b.buf) {
		return &ErrOutOfCapacity{Capacity: len(b.buf)}
	}
	copy(b.buf[at+n:b.w+n], b.buf[at:b.w])
	copy(b.buf[at:at+n], p)
	b.w += n
	return nil
}

// Reserve appends k zero bytes to internal storage, raising the current
// capacity by exactly k (up to maxCap). Does not advance w or r.
func (b *ByteBuffer) Reserve(k int) {
	if k <= 0 {
		return
	}
	need := len(b.buf) + k
	if need > b.maxCap {
		need = b.maxCap
	}
	if need <= len(b.buf) {
		return
	}
	grown := make([]byte, need)
	copy(grown, b.buf)
	b.buf = grown
}

// Mark snapshots the current cursors.
func (b *ByteBuffer) Mark() Mark {
	return Mark{r: b.r, w: b.w}
}

// ResetFrom restores cursors captured by a prior Mark, rewinding a parser
// that read ahead but needs to retry from an earlier point (e.g. after an
// incomplete frame). Only valid while the underlying bytes at those
// cursor positions haven't been overwritten by an intervening compact.
func (b *ByteBuffer) ResetFrom(m Mark) {
	b.r, b.w = m.r, m.w
}
