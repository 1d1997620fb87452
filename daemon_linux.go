package librux

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux/internal/sysepoll"
)

// signalToken is the reserved user-data token the daemon's own epoll
// instance registers its signalfd under. It never needs to share an
// epoll instance with a worker's Action-codec tokens, so any constant
// works; zero is as good as any.
const signalToken = uint64(0)

// Daemon is the auxiliary reactor that owns a signalfd, converts signals
// to lifecycle commands, and starts/stops the multi-reactor Server
// (spec.md §4.8). It runs in the calling goroutine's thread — typically
// a process's main goroutine.
type Daemon[H Handler] struct {
	server      *Server[H]
	sigHandler  SignalHandler
	prop        Reloadable
	logger      *zap.Logger
	sigMask     []unix.Signal
	terminating int32
}

// NewDaemon builds a Daemon around server. prop may be nil if the
// application has nothing to reload on SIGHUP. sigHandler may be nil to
// use DefaultSignalHandler. sigMask defaults to {SIGTERM, SIGHUP}
// (spec.md §6).
func NewDaemon[H Handler](server *Server[H], prop Reloadable, sigHandler SignalHandler, logger *zap.Logger, sigMask ...unix.Signal) *Daemon[H] {
	if sigHandler == nil {
		sigHandler = DefaultSignalHandler
	}
	if logger == nil {
		logger = defaultLogger
	}
	if len(sigMask) == 0 {
		sigMask = []unix.Signal{unix.SIGTERM, unix.SIGHUP}
	}
	return &Daemon[H]{server: server, sigHandler: sigHandler, prop: prop, logger: logger, sigMask: sigMask}
}

// Run blocks the signal set, starts the server on a separate goroutine,
// and waits on the signalfd until a shutdown command is observed.
// Returns the server's Start() error, if any (spec.md §7's Fatal kind
// propagates from bootstrap).
func (d *Daemon[H]) Run() error {
	// PthreadSigmask masks only the calling thread, and the epoll_wait
	// loop below must run on that same thread for the mask to cover it.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	mask, err := sysepoll.SigBlock(d.sigMask...)
	if err != nil {
		return err
	}

	sigFD, err := sysepoll.Signalfd(mask)
	if err != nil {
		return err
	}
	defer sysepoll.Close(sigFD)

	epfd, err := sysepoll.Create()
	if err != nil {
		return err
	}
	defer sysepoll.Close(epfd)

	if err := sysepoll.CtlAdd(epfd, sigFD, unix.EPOLLIN, signalToken); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- d.server.Start() }()

	events := make([]sysepoll.Event, 4)
	for atomic.LoadInt32(&d.terminating) == 0 {
		n, err := sysepoll.Wait(epfd, events, -1)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			d.handleSignalReadiness(sigFD)
		}
	}

	return <-serverErr
}

// handleSignalReadiness drains every siginfo currently pending on sigFD
// (signalfd can coalesce multiple deliveries of the same signal into one
// readiness event) and dispatches each through the configured
// SignalHandler.
func (d *Daemon[H]) handleSignalReadiness(sigFD int) {
	for {
		sig, err := sysepoll.ReadSignal(sigFD)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			d.logger.Warn("signalfd read failed", zap.Error(err))
			return
		}
		d.dispatch(sig)
	}
}

func (d *Daemon[H]) dispatch(sig unix.Signal) {
	switch d.sigHandler(sig) {
	case CmdReload:
		if d.prop == nil {
			return
		}
		if err := d.prop.Reload(); err != nil {
			d.logger.Warn("reload failed", zap.Error(err))
		}
	case CmdShutdown:
		atomic.StoreInt32(&d.terminating, 1)
		d.server.Shutdown()
	}
}
