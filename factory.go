package librux

// HandlerFactory constructs handlers and their per-connection resources
// for a SyncMux. It is generic over the handler type H so that an
// application's concrete Handler implementation flows through SyncMux
// without any interface-value boxing of the hot OnNext path; the
// per-slot resource type is fixed to *ByteBuffer rather than made a
// second type parameter (spec.md §9's generics-vs-trait-objects open
// question resolved in favor of the simpler single-type-parameter shape,
// since every handler in scope shares the same resource kind).
type HandlerFactory[H Handler] interface {
	// NewResource constructs a fresh per-slot resource, typically sized
	// from whatever capacity policy the factory was configured with.
	NewResource() *ByteBuffer

	// NewHandler constructs a handler bound to epfd and the accepted
	// client fd cfd.
	NewHandler(epfd int, cfd int32) H

	// Interests returns the epoll interest mask to register a new client
	// fd under. Edge-triggered (EPOLLET) by default per spec.md §4.3, to
	// avoid the thundering-herd wakeup cost at high concurrency; a
	// factory that wants level-triggered behavior returns a mask without
	// EPOLLET.
	Interests() uint32
}
