package librux

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type countingReloadable struct {
	reloads int32
}

func (r *countingReloadable) Reload() error {
	atomic.AddInt32(&r.reloads, 1)
	return nil
}

func TestDaemonReloadAndShutdownOverRealSignals(t *testing.T) {
	cfg := DefaultConfig("127.0.0.1:18082")
	cfg.IOThreads = 1
	cfg.MaxConn = 8

	srv := NewServer[*echoHandler](cfg, echoFactory{}, nil, nil)
	prop := &countingReloadable{}
	daemon := NewDaemon[*echoHandler](srv, prop, nil, nil)

	done := make(chan error, 1)
	go func() { done <- daemon.Run() }()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGHUP))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&prop.reloads) == 1
	}, time.Second, 10*time.Millisecond, "SIGHUP should invoke Reload exactly once")

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down after SIGTERM")
	}
}
