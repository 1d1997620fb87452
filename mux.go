package librux

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux/internal/sysepoll"
	"github.com/ernestrc/librux/rmetrics"
)

// SyncMux is the root handler for a worker reactor: it demultiplexes raw
// epoll events into accepts on the listening socket and notifications
// routed to per-connection handlers via a slot table (spec.md §4.6, the
// heaviest single component in the original design).
type SyncMux[H Handler] struct {
	epfd        int
	listenFD    int32
	listenToken uint64
	factory     HandlerFactory[H]
	slots       *slotTable[H]
	logger      *zap.Logger
	metrics     *rmetrics.Metrics
	shutdown    int32
}

// NewSyncMux builds a SyncMux bound to epfd and listenFD, with a slot
// table sized to maxConn. logger may be nil to fall back to the package
// default logger; metrics may be nil, in which case no counters or
// gauges are updated.
func NewSyncMux[H Handler](epfd int, listenFD int32, factory HandlerFactory[H], maxConn int, logger *zap.Logger, metrics *rmetrics.Metrics) *SyncMux[H] {
	if logger == nil {
		logger = defaultLogger
	}
	return &SyncMux[H]{
		epfd:        epfd,
		listenFD:    listenFD,
		listenToken: EncodeListen(listenFD),
		factory:     factory,
		slots:       newSlotTable[H](maxConn),
		logger:      logger,
		metrics:     metrics,
	}
}

// RequestShutdown marks this SyncMux so the next Next() call reports
// Shutdown to its Reactor. Safe to call from another goroutine (the
// Daemon's signal loop calling into a worker's SyncMux).
func (m *SyncMux[H]) RequestShutdown() {
	atomic.StoreInt32(&m.shutdown, 1)
}

// Next reports Shutdown once RequestShutdown has been called, Poll
// otherwise — SyncMux never decides to shut itself down from inside
// OnNext (spec.md §4.4's root contract).
func (m *SyncMux[H]) Next() RootCommand {
	if atomic.LoadInt32(&m.shutdown) == 1 {
		return Shutdown
	}
	return Poll
}

// OnNext dispatches one raw readiness event: accepts on the listening fd,
// or routes a notification to the owning slot's handler (spec.md §4.6,
// operations 1-3).
func (m *SyncMux[H]) OnNext(ev RawEvent) {
	// The listening fd's token is compared directly before falling back
	// to the codec's tag-bit decode, sidestepping the documented
	// low-15-bit collision entirely for the one token value that matters
	// (spec.md §4.5, §9 Open Question 2).
	if ev.Token == m.listenToken {
		m.handleAccept()
		return
	}

	act := Decode(ev.Token)
	if act.Kind == ActionListen {
		m.handleAccept()
		return
	}
	m.handleNotify(act.Slot, act.FD, ev.Events)
}

// handleAccept drains at most one pending connection per wake, per
// spec.md §4.6's starvation rule: under EPOLLEXCLUSIVE the kernel
// re-raises readiness for any remaining backlog, so a single accept per
// event keeps wakeup distribution fair across workers.
func (m *SyncMux[H]) handleAccept() {
	cfd, err := sysepoll.Accept4(int(m.listenFD))
	if err != nil {
		switch err {
		case unix.EAGAIN:
			return
		case unix.EINTR:
			cfd, err = sysepoll.Accept4(int(m.listenFD))
			if err != nil {
				if err == unix.EAGAIN {
					return
				}
				m.acceptError(err)
				return
			}
		default:
			m.acceptError(err)
			return
		}
	}

	h := m.factory.NewHandler(m.epfd, int32(cfd))
	r := m.factory.NewResource()

	slot, ok := m.slots.Alloc(int32(cfd), h, r)
	if !ok {
		m.logger.Info("slot table full, dropping connection", zap.Int("fd", cfd))
		_ = sysepoll.Close(cfd)
		if m.metrics != nil {
			m.metrics.AcceptErrors.Inc()
		}
		return
	}

	token := EncodeNotify(slot, int32(cfd))
	if err := sysepoll.CtlAdd(m.epfd, cfd, m.factory.Interests(), token); err != nil {
		m.logger.Warn("epoll_ctl add failed for accepted fd", zap.Int("fd", cfd), zap.Error(err))
		m.slots.Free(slot)
		_ = sysepoll.Close(cfd)
		if m.metrics != nil {
			m.metrics.AcceptErrors.Inc()
		}
		return
	}

	if m.metrics != nil {
		m.metrics.Accepts.Inc()
		m.metrics.ActiveConnections.Inc()
	}
}

func (m *SyncMux[H]) acceptError(err error) {
	m.logger.Warn("accept4 failed", zap.Error(err))
	if m.metrics != nil {
		m.metrics.AcceptErrors.Inc()
	}
}

// handleNotify routes a notification to the handler owning slot i. A
// stale event for an already-freed slot is silently dropped (spec.md
// §4.6, §8's stale-notify invariant).
func (m *SyncMux[H]) handleNotify(i uint16, fd int32, events uint32) {
	entry, ok := m.slots.Get(i)
	if !ok {
		return
	}

	cmd := entry.handler.OnNext(MuxEvent{FD: fd, Events: events, Resource: entry.resource})
	if cmd != Close {
		return
	}

	if err := sysepoll.CtlDel(m.epfd, int(fd)); err != nil {
		m.logger.Warn("epoll_ctl del failed", zap.Int32("fd", fd), zap.Error(err))
	}
	if err := sysepoll.Close(int(fd)); err != nil {
		m.logger.Warn("close failed", zap.Int32("fd", fd), zap.Error(err))
	}
	m.slots.Free(i)

	if m.metrics != nil {
		m.metrics.Closes.Inc()
		m.metrics.ActiveConnections.Dec()
	}
}
