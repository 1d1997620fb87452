package librux

// Command is what an application Handler returns after processing one
// MuxEvent: either keep the connection registered, or close it.
type Command int

const (
	// Keep leaves the slot and its registration untouched.
	Keep Command = iota
	// Close tells SyncMux to unregister the fd, close it, and free the
	// slot, discarding the slot's handler and resource.
	Close
)

func (c Command) String() string {
	if c == Close {
		return "Close"
	}
	return "Keep"
}

// RootCommand is what a RootHandler returns after draining one batch of
// events: either keep the reactor running, or stop it.
type RootCommand int

const (
	// Poll keeps the reactor loop running.
	Poll RootCommand = iota
	// Shutdown tells the Reactor to break out of its wait loop.
	Shutdown
)

func (c RootCommand) String() string {
	if c == Shutdown {
		return "Shutdown"
	}
	return "Poll"
}

// MuxEvent is the event an application Handler sees: the raw client fd,
// the epoll readiness flags that fired, and the per-slot resource it owns
// exclusively for the lifetime of the connection.
type MuxEvent struct {
	FD       int32
	Events   uint32
	Resource *ByteBuffer
}

// Handler is a per-connection state machine. on_next must be pure,
// synchronous and non-blocking — all I/O inside it is expected to be
// non-blocking socket I/O that returns EAGAIN rather than stalling the
// worker (spec.md §4.2, §5).
type Handler interface {
	// OnNext consumes one event, mutating internal state and the shared
	// resource in ev, and returns the next command for SyncMux to act on.
	OnNext(ev MuxEvent) Command

	// Reset clears a handler's internal state so an application that
	// pools its own handler values (outside of SyncMux, which always
	// builds a fresh H/resource pair per accept via HandlerFactory — see
	// DESIGN.md) can hand one back into its own pool instead of
	// discarding it. SyncMux itself never calls Reset.
	Reset()
}

// RawEvent is the native readiness event a Reactor feeds to its
// RootHandler: the epoll flags and the raw, undecoded 64-bit user-data
// token.
type RawEvent struct {
	Events uint32
	Token  uint64
}

// RootHandler is what a Reactor drives on every wait-loop iteration. A
// RootHandler sees the whole batch one event at a time via OnNext and
// then gets asked whether the reactor should keep polling or shut down.
type RootHandler interface {
	// OnNext handles a single raw readiness event.
	OnNext(ev RawEvent)

	// Next reports whether the reactor should keep polling or stop. Most
	// root handlers cache a pending Shutdown from a prior call and surface
	// it here rather than deciding inline inside OnNext.
	Next() RootCommand
}
