package librux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	id int
}

func (h *fakeHandler) OnNext(ev MuxEvent) Command { return Keep }
func (h *fakeHandler) Reset()                     {}

func TestSlotTableAllocReusesFreedIndices(t *testing.T) {
	tbl := newSlotTable[*fakeHandler](4)
	assert.Equal(t, 4, tbl.Cap())
	assert.Equal(t, 0, tbl.Len())

	var allocated []uint16
	for i := 0; i < 4; i++ {
		idx, ok := tbl.Alloc(int32(100+i), &fakeHandler{id: i}, NewByteBuffer(8, 8))
		require.True(t, ok)
		allocated = append(allocated, idx)
	}
	assert.Equal(t, 4, tbl.Len())

	_, ok := tbl.Alloc(999, &fakeHandler{}, NewByteBuffer(8, 8))
	assert.False(t, ok, "table at capacity must reject further allocation")

	tbl.Free(allocated[1])
	assert.Equal(t, 3, tbl.Len())

	idx, ok := tbl.Alloc(555, &fakeHandler{id: 99}, NewByteBuffer(8, 8))
	require.True(t, ok)
	assert.Equal(t, allocated[1], idx, "freed index is reused before growing")
}

func TestSlotTableGetOnVacantIsStale(t *testing.T) {
	tbl := newSlotTable[*fakeHandler](2)
	idx, ok := tbl.Alloc(10, &fakeHandler{}, NewByteBuffer(8, 8))
	require.True(t, ok)

	tbl.Free(idx)

	_, ok = tbl.Get(idx)
	assert.False(t, ok, "a freed slot must look vacant to a stale notify")
}

func TestSlotTableGetOutOfRange(t *testing.T) {
	tbl := newSlotTable[*fakeHandler](2)
	_, ok := tbl.Get(99)
	assert.False(t, ok)
}
