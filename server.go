package librux

import "runtime"

// SockType selects the socket family librux binds: Stream for TCP,
// Datagram for UDP (spec.md §3, §6).
type SockType int

const (
	Stream SockType = iota
	Datagram
)

// SchedPolicy optionally requests real-time scheduling for worker
// threads (spec.md §4.8's closing paragraph). Zero value means "leave
// the default scheduler alone".
type SchedPolicy int

const (
	SchedDefault SchedPolicy = iota
	SchedFIFO
	SchedRR
	SchedOther
)

// Config is the full set of knobs spec.md §6 enumerates for server
// bootstrap, plus one expansion knob (MetricsAddr) used only by the
// external cmd/librux-serve CLI.
type Config struct {
	// Addr is the bind address, "host:port". IPv4 and IPv6 both
	// supported; IPv6 literals must be bracketed ("[::1]:8080").
	Addr string
	// SockType selects TCP (Stream) or UDP (Datagram).
	SockType SockType
	// MaxConn is the listen backlog and the per-worker slot table
	// capacity. Default 5000 * NumCPU.
	MaxConn int
	// IOThreads is the number of worker reactors. Default
	// max(1, NumCPU-1).
	IOThreads int
	// LoopMS is the epoll_wait timeout in milliseconds; -1 blocks
	// indefinitely (the default).
	LoopMS int
	// BufferCapacity is the initial per-wake event batch size. Default
	// 256. It is not a cap: a worker's reactor doubles its batch buffer
	// whenever a wake fills it.
	BufferCapacity int
	// SchedPolicy/SchedPriority optionally request real-time scheduling
	// for every worker OS thread (spec.md §4.8).
	SchedPolicy   SchedPolicy
	SchedPriority int

	// MetricsAddr, if non-empty, is the address cmd/librux-serve binds a
	// promhttp handler to. Never read by Server/Daemon themselves —
	// metrics wiring into SyncMux happens via the prometheus.Registerer
	// argument to NewServer, independent of this field.
	MetricsAddr string
}

// DefaultConfig returns the spec's default Config for addr, sized to the
// number of CPUs visible to the process (spec.md §3, §6).
func DefaultConfig(addr string) Config {
	ncpu := runtime.NumCPU()
	ioThreads := ncpu - 1
	if ioThreads < 1 {
		ioThreads = 1
	}
	return Config{
		Addr:           addr,
		SockType:       Stream,
		MaxConn:        5000 * ncpu,
		IOThreads:      ioThreads,
		LoopMS:         -1,
		BufferCapacity: 256,
	}
}
