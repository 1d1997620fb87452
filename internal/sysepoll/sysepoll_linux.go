// Package sysepoll wraps the handful of Linux syscalls the reactor,
// SyncMux and server bootstrap need: epoll, eventfd, signalfd, accept4
// and the socket options that make SO_REUSEPORT load balancing and CPU
// pinning work. The root librux package makes its syscalls through here
// instead of calling golang.org/x/sys/unix directly (it still uses that
// package's constants and types), so its raw syscall surface stays in
// one place.
package sysepoll

import (
	"os"
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event mirrors unix.EpollEvent with a plain uint64 token instead of the
// kernel's split Fd/Pad fields, so callers never touch unsafe.Pointer.
type Event struct {
	Events uint32
	Token  uint64
}

func packToken(t uint64) (fd int32, pad int32) {
	return int32(uint32(t)), int32(uint32(t >> 32))
}

func unpackToken(fd, pad int32) uint64 {
	return uint64(uint32(pad))<<32 | uint64(uint32(fd))
}

// Create opens a fresh epoll instance with CLOEXEC set, matching what the
// Go runtime itself does for its own epoll fd.
func Create() (int, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, errors.Wrap(err, "epoll_create1")
	}
	return fd, nil
}

// CtlAdd registers fd on epfd for the given interest mask, tagging the
// event with token via the kernel's 64-bit user-data field.
func CtlAdd(epfd, fd int, events uint32, token uint64) error {
	ev := unix.EpollEvent{Events: events}
	ev.Fd, ev.Pad = packToken(token)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrap(err, "epoll_ctl add")
	}
	return nil
}

// CtlMod changes the interest mask for an already-registered fd.
func CtlMod(epfd, fd int, events uint32, token uint64) error {
	ev := unix.EpollEvent{Events: events}
	ev.Fd, ev.Pad = packToken(token)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.Wrap(err, "epoll_ctl mod")
	}
	return nil
}

// CtlDel deregisters fd from epfd.
func CtlDel(epfd, fd int) error {
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrap(err, "epoll_ctl del")
	}
	return nil
}

// Wait blocks for up to msecTimeout milliseconds (-1 = forever) and fills
// buf with ready events, returning the count. EINTR is retried internally
// since the caller never needs to see it (spec error kind "Interruptible").
func Wait(epfd int, buf []Event, msecTimeout int) (int, error) {
	raw := make([]unix.EpollEvent, len(buf))
	for {
		n, err := unix.EpollWait(epfd, raw, msecTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, errors.Wrap(err, "epoll_wait")
		}
		for i := 0; i < n; i++ {
			buf[i].Events = raw[i].Events
			buf[i].Token = unpackToken(raw[i].Fd, raw[i].Pad)
		}
		return n, nil
	}
}

// Eventfd creates a non-blocking eventfd(2) used purely to wake a blocked
// epoll_wait from another goroutine (the Reactor shutdown path).
func Eventfd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, errors.Wrap(err, "eventfd")
	}
	return fd, nil
}

// EventfdSignal wakes anyone blocked in epoll_wait on this eventfd.
func EventfdSignal(fd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return errors.Wrap(err, "eventfd write")
	}
	return nil
}

// EventfdDrain clears the pending counter after a wakeup so the next
// epoll_wait doesn't immediately return spuriously.
func EventfdDrain(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

// SigBlock blocks the given signals on the calling thread ahead of
// creating a signalfd over the same set, returning the mask used so it
// can be passed straight to Signalfd. unix.PthreadSigmask is per-thread
// rather than process-wide; Daemon.Run calls this from the same thread
// it then blocks in epoll_wait on, which is the only thread that needs
// the signals diverted away from the default disposition.
func SigBlock(signals ...unix.Signal) (*unix.Sigset_t, error) {
	var set unix.Sigset_t
	for _, s := range signals {
		idx := int(s) - 1
		set.Val[idx/64] |= 1 << uint(idx%64)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return nil, errors.Wrap(err, "pthread_sigmask")
	}
	return &set, nil
}

// Signalfd creates a signalfd(2) over mask, after the caller has already
// blocked those signals process-wide via SigBlock.
func Signalfd(mask *unix.Sigset_t) (int, error) {
	fd, err := unix.Signalfd(-1, mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return -1, errors.Wrap(err, "signalfd")
	}
	return fd, nil
}

var sizeofSiginfo = int(unsafe.Sizeof(unix.SignalfdSiginfo{}))

// ReadSignal reads one signalfd_siginfo from fd and returns the signal
// number. Returns unix.EAGAIN when nothing is pending.
func ReadSignal(fd int) (unix.Signal, error) {
	buf := make([]byte, sizeofSiginfo)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, err
	}
	if n < 4 {
		return 0, errors.New("short signalfd read")
	}
	info := (*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
	return unix.Signal(info.Signo), nil
}

// Accept4 accepts a connection on listenFD with SOCK_NONBLOCK set on the
// returned socket atomically, avoiding a separate fcntl round trip.
func Accept4(listenFD int) (int, error) {
	fd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// NewListenSocket creates, configures (SO_REUSEADDR, SO_REUSEPORT,
// non-blocking) and binds a TCP or UDP listening socket for addr. For
// SOCK_STREAM it also calls listen(2) with the given backlog.
func NewListenSocket(family, sockType int, sockaddr unix.Sockaddr, backlog int) (int, error) {
	fd, err := unix.Socket(family, sockType|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt SO_REUSEPORT")
	}
	if err := unix.Bind(fd, sockaddr); err != nil {
		unix.Close(fd)
		return -1, errors.Wrap(err, "bind")
	}
	if sockType == unix.SOCK_STREAM {
		if err := unix.Listen(fd, backlog); err != nil {
			unix.Close(fd)
			return -1, errors.Wrap(err, "listen")
		}
	}
	return fd, nil
}

// PinCurrentThread locks the calling goroutine to its OS thread and pins
// that thread to cpu. Lock the thread first, then set affinity on it —
// never the other way around, or the affinity call may land on a
// different underlying thread than the one the goroutine ends up on.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return errors.Wrapf(err, "sched_setaffinity cpu=%d", cpu)
	}
	return nil
}

// schedParam mirrors the kernel's struct sched_param; golang.org/x/sys/unix
// exposes no scheduler-policy wrappers (only the affinity ones), so this
// module calls sched_setscheduler/sched_get_priority_max directly, the
// same unwrapped-raw-syscall idiom the corpus uses for epoll_pwait.
type schedParam struct {
	priority int32
}

// schedGetPriorityMax wraps sched_get_priority_max(2).
func schedGetPriorityMax(policy int) (int, error) {
	r0, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, uintptr(policy), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(r0), nil
}

// schedSetscheduler wraps sched_setscheduler(2) for pid 0 (the calling
// thread).
func schedSetscheduler(policy int, sp *schedParam) error {
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(policy), uintptr(unsafe.Pointer(sp)))
	if errno != 0 {
		return errno
	}
	return nil
}

// SetScheduler applies a real-time scheduling policy and priority to the
// calling thread, clamping priority to the policy's max and raising
// RLIMIT_RTPRIO first so sched_setscheduler is permitted.
func SetScheduler(policy, priority int) error {
	max, err := schedGetPriorityMax(policy)
	if err != nil {
		return errors.Wrap(err, "sched_get_priority_max")
	}
	if priority > max {
		priority = max
	}
	limit := unix.Rlimit{Cur: uint64(priority), Max: uint64(priority)}
	if err := unix.Setrlimit(unix.RLIMIT_RTPRIO, &limit); err != nil {
		return errors.Wrap(err, "setrlimit RLIMIT_RTPRIO")
	}
	sp := schedParam{priority: int32(priority)}
	if err := schedSetscheduler(policy, &sp); err != nil {
		return errors.Wrap(err, "sched_setscheduler")
	}
	return nil
}

// Close closes fd, wrapping any error as *os.SyscallError.
func Close(fd int) error {
	if err := unix.Close(fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
