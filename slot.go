package librux

// slotEntry holds the state for one occupied slot: the application
// handler, its exclusive per-connection resource, and the client fd that
// routes to it.
type slotEntry[H Handler] struct {
	occupied bool
	handler  H
	resource *ByteBuffer
	fd       int32
}

// slotTable is a fixed-capacity table of N_max entries with free-list
// reuse, the routing backbone behind SyncMux (spec.md §3, §4.6). Indices
// are stable for the lifetime of an occupancy; a freed index goes back on
// the free list and is handed out again on the next Alloc.
type slotTable[H Handler] struct {
	entries []slotEntry[H]
	free    []uint16
}

// newSlotTable builds a table with capacity n ("N_max").
func newSlotTable[H Handler](n int) *slotTable[H] {
	t := &slotTable[H]{
		entries: make([]slotEntry[H], n),
		free:    make([]uint16, n),
	}
	for i := 0; i < n; i++ {
		t.free[i] = uint16(n - 1 - i)
	}
	return t
}

// Cap returns N_max.
func (t *slotTable[H]) Cap() int { return len(t.entries) }

// Len returns the number of currently occupied slots.
func (t *slotTable[H]) Len() int { return len(t.entries) - len(t.free) }

// Alloc reserves a vacant slot for fd, handler and resource, returning its
// index. The second return is false if the table is full
// (ErrSlotTableFull territory — the caller decides what to do with cfd).
func (t *slotTable[H]) Alloc(fd int32, h H, r *ByteBuffer) (uint16, bool) {
	if len(t.free) == 0 {
		return 0, false
	}
	i := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.entries[i] = slotEntry[H]{occupied: true, handler: h, resource: r, fd: fd}
	return i, true
}

// Get returns the entry at i and whether it is occupied. A false result
// for a Notify event means a stale, already-freed slot — SyncMux drops
// the event rather than treating this as an error (spec.md §4.6).
func (t *slotTable[H]) Get(i uint16) (*slotEntry[H], bool) {
	if int(i) >= len(t.entries) {
		return nil, false
	}
	e := &t.entries[i]
	if !e.occupied {
		return nil, false
	}
	return e, true
}

// Free releases slot i back onto the free list and clears its entry so a
// subsequent stale lookup sees it as vacant.
func (t *slotTable[H]) Free(i uint16) {
	if int(i) >= len(t.entries) || !t.entries[i].occupied {
		return
	}
	var zero H
	t.entries[i] = slotEntry[H]{handler: zero}
	t.free = append(t.free, i)
}
