package librux

import "go.uber.org/zap"

// defaultLogger is used by every package-level constructor that doesn't
// receive an explicit *zap.Logger, matching the corpus convention of a
// package-global fallback logger rather than threading one through every
// call (teacher's poll_default_linux.go uses the same plain package
// logger.Printf pattern for its own NETPOLL warnings).
var defaultLogger = zap.NewNop()

// SetLogger installs l as the default logger for components constructed
// without an explicit logger from this point on. Safe to call once at
// process startup before any Reactor/Server/Daemon is created.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger = l
}

// NewProductionLogger builds the zap logger cmd/librux-serve uses by
// default: JSON encoding, epoch-seconds timestamps, Info level.
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}
