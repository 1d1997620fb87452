package librux

// ActionKind distinguishes the two shapes an epoll token can decode to.
type ActionKind int

const (
	// ActionNotify routes to an already-accepted connection sitting in a
	// slot: (slot-index, fd).
	ActionNotify ActionKind = iota
	// ActionListen routes to a listening socket with a pending accept.
	ActionListen
)

// Action is the decoded form of a 64-bit epoll user-data token (spec.md §4.5).
type Action struct {
	Kind ActionKind
	Slot uint16
	FD   int32
}

// EncodeNotify packs (slot, fd) into a Notify token: (fd<<31)|(slot<<15).
// The low 15 bits are always zero, which is what Decode uses to recognize
// a Notify token. slot must fit in 16 bits and fd in 33 bits — both hold
// for any real Linux fd range and this module's slot table capacity.
func EncodeNotify(slot uint16, fd int32) uint64 {
	return (uint64(uint32(fd)) << 31) | (uint64(slot) << 15)
}

// EncodeListen packs a listening fd as a raw token. Per spec.md §4.5 this
// is only a safe encoding because a listening fd is registered once, at
// startup, and is never confused with the handful of low bits Notify
// reserves — callers additionally pin the known listening fd at the call
// site (see SyncMux) since a pathological fd value can in principle leave
// the low 15 bits zero too (the documented, inherited ambiguity).
func EncodeListen(fd int32) uint64 {
	return uint64(uint32(fd))
}

// notifyTagMask covers the low 15 bits Decode inspects to choose branches.
const notifyTagMask = uint64(1<<15) - 1

// Decode recovers an Action from a 64-bit token. When the low 15 bits are
// all zero, it decodes as Notify(slot, fd); otherwise the whole token is
// taken as a raw Listen fd (spec.md §4.5). The codec itself is a pure,
// collision-unaware function — SyncMux is responsible for guarding against
// the rare case where a Listen fd happens to leave those bits clear.
func Decode(token uint64) Action {
	if token&notifyTagMask == 0 {
		slot := uint16((token >> 15) & 0xffff)
		fd := int32(token >> 31)
		return Action{Kind: ActionNotify, Slot: slot, FD: fd}
	}
	return Action{Kind: ActionListen, FD: int32(uint32(token))}
}
