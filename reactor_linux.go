package librux

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux/internal/sysepoll"
)

// wakeToken is a reserved all-ones token that can never collide with a
// Notify or Listen token: Notify/Listen both derive from a 33-bit fd and
// a 16-bit slot, leaving the top bits always zero, so an all-ones value
// is safe to reserve for the reactor's own wakeup eventfd.
const wakeToken = ^uint64(0)

// Reactor owns a single epoll instance, waits for readiness events, and
// dispatches them one at a time to a RootHandler until told to stop
// (spec.md §4.4). It is single-threaded: exactly one goroutine calls Run.
//
// Shutdown while blocked in epoll_wait is handled the way the teacher's
// defaultPoll handles it: a dedicated non-blocking eventfd is registered
// under the reserved wake token, and Shutdown writes to it to interrupt
// whatever epoll_wait call is currently in flight.
type Reactor struct {
	epfd   int
	wakeFD int
	root   RootHandler
	loopMS int
	events []sysepoll.Event
	logger *zap.Logger
}

// NewReactor creates a Reactor with its own epoll instance and wakeup
// eventfd, but no root handler yet. bufCap is the initial per-wake event
// batch size ("B_cap"); it is not an upper bound, since Run doubles the
// batch buffer whenever a wake fills it. loopMS is the epoll_wait timeout
// in milliseconds,
// -1 to block indefinitely. Callers that need the epoll fd to build their
// RootHandler first (e.g. the server bootstrap building a SyncMux) call
// Epfd() after construction and SetRoot() before Run().
func NewReactor(bufCap, loopMS int, logger *zap.Logger) (*Reactor, error) {
	if logger == nil {
		logger = defaultLogger
	}
	if bufCap <= 0 {
		bufCap = 256
	}

	epfd, err := sysepoll.Create()
	if err != nil {
		return nil, err
	}

	wakeFD, err := sysepoll.Eventfd()
	if err != nil {
		sysepoll.Close(epfd)
		return nil, err
	}

	if err := sysepoll.CtlAdd(epfd, wakeFD, unix.EPOLLIN, wakeToken); err != nil {
		sysepoll.Close(wakeFD)
		sysepoll.Close(epfd)
		return nil, err
	}

	return &Reactor{
		epfd:   epfd,
		wakeFD: wakeFD,
		loopMS: loopMS,
		events: make([]sysepoll.Event, bufCap),
		logger: logger,
	}, nil
}

// Epfd returns the reactor's epoll file descriptor, so SyncMux and the
// server bootstrap can register listening/client sockets on it.
func (rx *Reactor) Epfd() int { return rx.epfd }

// SetRoot assigns the handler Run dispatches events to. Must be called
// before Run.
func (rx *Reactor) SetRoot(root RootHandler) {
	rx.root = root
}

// Run blocks, dispatching events to the root handler, until the root
// reports Shutdown after a batch. Shutdown() on this Reactor only wakes a
// blocked wait so that the root is consulted again; it does not stop the
// loop by itself (spec.md §4.4's algorithm).
func (rx *Reactor) Run() error {
	for {
		n, err := sysepoll.Wait(rx.epfd, rx.events, rx.loopMS)
		if err != nil {
			return err
		}

		for i := 0; i < n; i++ {
			ev := rx.events[i]
			if ev.Token == wakeToken {
				sysepoll.EventfdDrain(rx.wakeFD)
				continue
			}
			rx.root.OnNext(RawEvent{Events: ev.Events, Token: ev.Token})
		}

		if n == len(rx.events) {
			rx.grow()
		}

		if rx.root.Next() == Shutdown {
			break
		}
	}
	return rx.close()
}

// grow doubles the event batch buffer, matching the teacher's
// defaultPoll.Wait behavior of resizing the scratch buffer whenever a
// wake fills it completely (a sign more than B_cap events were ready).
func (rx *Reactor) grow() {
	rx.events = make([]sysepoll.Event, len(rx.events)*2)
}

// Shutdown interrupts a Reactor blocked in epoll_wait. Safe to call from
// any goroutine; it is a no-op if Run has already returned.
func (rx *Reactor) Shutdown() {
	if err := sysepoll.EventfdSignal(rx.wakeFD); err != nil {
		rx.logger.Warn("failed to signal reactor wakeup eventfd", zap.Error(err))
	}
}

func (rx *Reactor) close() error {
	if err := sysepoll.Close(rx.wakeFD); err != nil {
		rx.logger.Warn("failed to close wakeup eventfd", zap.Error(err))
	}
	return sysepoll.Close(rx.epfd)
}
