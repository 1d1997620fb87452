package librux

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ernestrc/librux/internal/sysepoll"
)

type countingRoot struct {
	seen     int32
	stopAt   int32
	shutdown int32
}

func (r *countingRoot) OnNext(ev RawEvent) {
	atomic.AddInt32(&r.seen, 1)
}

func (r *countingRoot) Next() RootCommand {
	if atomic.LoadInt32(&r.seen) >= r.stopAt {
		return Shutdown
	}
	return Poll
}

func TestReactorDispatchesUntilRootShutsDown(t *testing.T) {
	root := &countingRoot{stopAt: 3}
	rx, err := NewReactor(8, 1000, nil)
	require.NoError(t, err)
	rx.SetRoot(root)

	notifyFD, err := sysepoll.Eventfd()
	require.NoError(t, err)
	defer sysepoll.Close(notifyFD)

	require.NoError(t, sysepoll.CtlAdd(rx.Epfd(), notifyFD, unix.EPOLLIN, 7))

	done := make(chan error, 1)
	go func() { done <- rx.Run() }()

	for i := 0; i < 3; i++ {
		require.NoError(t, sysepoll.EventfdSignal(notifyFD))
		time.Sleep(20 * time.Millisecond)
		sysepoll.EventfdDrain(notifyFD)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reactor did not shut down after root reported Shutdown")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt32(&root.seen), int32(3))
}

func TestReactorShutdownInterruptsBlockedWait(t *testing.T) {
	root := &countingRoot{stopAt: 1 << 30} // never asks to stop on its own
	rx, err := NewReactor(8, -1, nil)
	require.NoError(t, err)
	rx.SetRoot(root)

	done := make(chan error, 1)
	go func() { done <- rx.Run() }()

	time.Sleep(50 * time.Millisecond)
	root.stopAt = 0 // next dispatch will report Shutdown
	rx.Shutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown() did not interrupt a blocked epoll_wait")
	}
}
