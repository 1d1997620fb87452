package librux

import (
	"net"
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux/internal/sysepoll"
	"github.com/ernestrc/librux/rmetrics"
)

// Server ties together the listening socket, one Reactor+SyncMux pair per
// worker, and CPU pinning into the multi-reactor bootstrap from spec.md
// §4.7: a shared srvfd registered with EPOLLEXCLUSIVE on a separate epoll
// instance per worker, so the kernel wakes exactly one worker per
// arriving connection.
type Server[H Handler] struct {
	cfg     Config
	factory HandlerFactory[H]
	logger  *zap.Logger
	reg     prometheus.Registerer

	listenFD int
	reactors []*Reactor
	muxes    []*SyncMux[H]
	wg       sync.WaitGroup
}

// NewServer builds a Server for cfg. reg may be nil, in which case the
// worker SyncMuxes run without metrics wiring (prometheus.NewRegistry()
// should be passed in production so librux_* series don't collide with
// an application's own default-registry collectors).
func NewServer[H Handler](cfg Config, factory HandlerFactory[H], logger *zap.Logger, reg prometheus.Registerer) *Server[H] {
	if logger == nil {
		logger = defaultLogger
	}
	return &Server[H]{cfg: cfg, factory: factory, logger: logger, reg: reg}
}

// resolveSockaddr turns a "host:port" address into the family and
// unix.Sockaddr NewListenSocket needs, supporting both IPv4 and IPv6.
func resolveSockaddr(addr string) (family int, sa unix.Sockaddr, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid address")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid port")
	}

	ip := net.ParseIP(host)
	if ip == nil {
		if host == "" {
			ip = net.IPv4zero
		} else {
			return 0, nil, errors.Errorf("unparseable bind address %q", host)
		}
	}

	if ip4 := ip.To4(); ip4 != nil {
		var a [4]byte
		copy(a[:], ip4)
		return unix.AF_INET, &unix.SockaddrInet4{Port: port, Addr: a}, nil
	}

	var a [16]byte
	copy(a[:], ip.To16())
	return unix.AF_INET6, &unix.SockaddrInet6{Port: port, Addr: a}, nil
}

// Start binds the listening socket and runs every worker reactor,
// blocking in the calling goroutine as worker 0 (spec.md §4.7 step 5).
// It returns once worker 0 has stopped after Shutdown (call Wait for
// workers 1..N-1), or immediately with an error if any bootstrap step
// fails (spec.md §7 kind 7, Fatal).
func (s *Server[H]) Start() error {
	family, sa, err := resolveSockaddr(s.cfg.Addr)
	if err != nil {
		return err
	}

	sockType := unix.SOCK_STREAM
	if s.cfg.SockType == Datagram {
		sockType = unix.SOCK_DGRAM
	}

	listenFD, err := sysepoll.NewListenSocket(family, sockType, sa, s.cfg.MaxConn)
	if err != nil {
		return errors.Wrap(err, "failed to create listening socket")
	}
	s.listenFD = listenFD

	n := s.cfg.IOThreads
	if n < 1 {
		n = 1
	}
	s.reactors = make([]*Reactor, n)
	s.muxes = make([]*SyncMux[H], n)

	listenInterests := uint32(unix.EPOLLIN | unix.EPOLLEXCLUSIVE | unix.EPOLLWAKEUP)
	listenToken := EncodeListen(int32(listenFD))

	for i := 0; i < n; i++ {
		rx, err := NewReactor(s.cfg.BufferCapacity, s.cfg.LoopMS, s.logger)
		if err != nil {
			return errors.Wrapf(err, "failed to create reactor for worker %d", i)
		}

		var metrics *rmetrics.Metrics
		if s.reg != nil {
			metrics = rmetrics.New(s.reg, strconv.Itoa(i))
		}
		mux := NewSyncMux[H](rx.Epfd(), int32(listenFD), s.factory, s.cfg.MaxConn, s.logger, metrics)
		rx.SetRoot(mux)

		if err := sysepoll.CtlAdd(rx.Epfd(), listenFD, listenInterests, listenToken); err != nil {
			return errors.Wrapf(err, "failed to register listening socket on worker %d", i)
		}

		s.reactors[i] = rx
		s.muxes[i] = mux
	}

	ncpu := runtime.NumCPU()
	for i := 1; i < n; i++ {
		s.wg.Add(1)
		go s.runWorker(i, ncpu)
	}

	return s.runWorkerBlocking(0, ncpu)
}

func (s *Server[H]) runWorker(i, ncpu int) {
	defer s.wg.Done()
	_ = s.runWorkerBlocking(i, ncpu)
}

func (s *Server[H]) runWorkerBlocking(i, ncpu int) error {
	if err := sysepoll.PinCurrentThread(i % ncpu); err != nil {
		s.logger.Warn("failed to pin worker to cpu", zap.Int("worker", i), zap.Error(err))
	}
	if s.cfg.SchedPolicy != SchedDefault {
		if err := sysepoll.SetScheduler(schedPolicyConst(s.cfg.SchedPolicy), s.cfg.SchedPriority); err != nil {
			s.logger.Warn("failed to apply scheduler policy", zap.Int("worker", i), zap.Error(err))
		}
	}
	return s.reactors[i].Run()
}

// Shutdown stops every worker reactor. Safe to call once from any
// goroutine; Start() returns once worker 0 observes the shutdown.
func (s *Server[H]) Shutdown() {
	for i, mux := range s.muxes {
		if mux != nil {
			mux.RequestShutdown()
		}
		if s.reactors[i] != nil {
			s.reactors[i].Shutdown()
		}
	}
}

// Wait blocks until every spawned worker goroutine (workers 1..N-1) has
// returned. Worker 0 is already known to have returned once Start()
// itself returns.
func (s *Server[H]) Wait() {
	s.wg.Wait()
}

func schedPolicyConst(p SchedPolicy) int {
	switch p {
	case SchedFIFO:
		return unix.SCHED_FIFO
	case SchedRR:
		return unix.SCHED_RR
	default:
		return unix.SCHED_OTHER
	}
}
