package librux

import "fmt"

// ErrOutOfCapacity is returned by ByteBuffer.Write/WriteAt when a payload
// does not fit even after compaction. Capacity is the buffer's current
// capacity at the time of the failed write (spec.md §7, kind 3).
type ErrOutOfCapacity struct {
	Capacity int
}

func (e *ErrOutOfCapacity) Error() string {
	return fmt.Sprintf("librux: out of capacity (capacity=%d)", e.Capacity)
}

// ErrSlotTableFull names the condition where accept succeeds at the
// socket layer but no vacant slot remains (spec.md §7, kind 6). The slot
// table reports it by returning false from Alloc rather than this value,
// and SyncMux closes the new fd and logs rather than propagating it.
var ErrSlotTableFull = fmt.Errorf("librux: slot table full")
