package librux

import "golang.org/x/sys/unix"

// DaemonCmd is what a signal is translated to by a SignalHandler
// (spec.md §4.8).
type DaemonCmd int

const (
	// CmdContinue means the signal carries no lifecycle action.
	CmdContinue DaemonCmd = iota
	// CmdReload invokes the daemon's Reloadable, if any.
	CmdReload
	// CmdShutdown sets the terminating flag and stops every worker.
	CmdShutdown
)

// SignalHandler maps a delivered signal to a DaemonCmd. Applications may
// supply their own to intercept additional signals; DefaultSignalHandler
// implements spec.md §4.8's defaults.
type SignalHandler func(sig unix.Signal) DaemonCmd

// DefaultSignalHandler maps SIGTERM to shutdown, SIGHUP to reload, and
// anything else to Continue (spec.md §4.8).
func DefaultSignalHandler(sig unix.Signal) DaemonCmd {
	switch sig {
	case unix.SIGTERM:
		return CmdShutdown
	case unix.SIGHUP:
		return CmdReload
	default:
		return CmdContinue
	}
}

// Reloadable is the application-defined "prop" reference spec.md §4.8
// mentions: whatever re-reading configuration or swapping state means for
// a given application.
type Reloadable interface {
	Reload() error
}
