package librux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBufferWriteReadConcatenation(t *testing.T) {
	buf := NewByteBuffer(64, 64)

	parts := [][]byte{
		[]byte("hello, "),
		[]byte("world"),
		[]byte("!"),
	}
	var want bytes.Buffer
	for _, p := range parts {
		n, err := buf.Write(p)
		require.NoError(t, err)
		require.Equal(t, len(p), n)
		want.Write(p)
	}

	got := make([]byte, buf.Readable())
	n, err := buf.Read(got)
	require.NoError(t, err)
	assert.Equal(t, want.Len(), n)
	assert.Equal(t, want.Bytes(), got)
}

func TestByteBufferReadDoesNotAdvance(t *testing.T) {
	buf := NewByteBuffer(16, 16)
	_, err := buf.Write([]byte("abc"))
	require.NoError(t, err)

	first := make([]byte, 3)
	_, err = buf.Read(first)
	require.NoError(t, err)

	second := make([]byte, 3)
	_, err = buf.Read(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, buf.Readable())
}

func TestByteBufferConsumeToEmptyResets(t *testing.T) {
	buf := NewByteBuffer(8, 32)
	_, err := buf.Write([]byte("abcd"))
	require.NoError(t, err)
	buf.Reserve(8)
	assert.Equal(t, 16, buf.Cap())

	buf.Consume(4)

	assert.Equal(t, 0, buf.Readable())
	assert.Equal(t, 8, buf.Cap(), "consuming to empty releases growth back to initial capacity")
}

func TestByteBufferConsumePartial(t *testing.T) {
	buf := NewByteBuffer(16, 16)
	_, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)

	buf.Consume(2)
	assert.Equal(t, 4, buf.Readable())
	assert.Equal(t, []byte("cdef"), buf.Slice(0))
}

func TestByteBufferWriteSucceedsViaCompaction(t *testing.T) {
	buf := NewByteBuffer(8, 8)

	_, err := buf.Write([]byte("abcdef"))
	require.NoError(t, err)
	buf.Consume(4)

	n, err := buf.Write([]byte("ghijkl"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, []byte("efghijkl"), buf.Slice(0))
}

func TestByteBufferWriteFailsOutOfCapacity(t *testing.T) {
	buf := NewByteBuffer(4, 4)

	_, err := buf.Write([]byte("abcd"))
	require.NoError(t, err)

	_, err = buf.Write([]byte("e"))
	require.Error(t, err)

	var oc *ErrOutOfCapacity
	require.ErrorAs(t, err, &oc)
	assert.Equal(t, 4, oc.Capacity)

	// Failed write leaves the buffer untouched.
	assert.Equal(t, 4, buf.Readable())
	assert.Equal(t, []byte("abcd"), buf.Slice(0))
}

func TestByteBufferWriteEmptyIsNoop(t *testing.T) {
	buf := NewByteBuffer(4, 4)
	n, err := buf.Write(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, buf.Readable())
}

func TestByteBufferWriteAtInsertsAtOffset(t *testing.T) {
	buf := NewByteBuffer(16, 16)
	_, err := buf.Write([]byte("ac"))
	require.NoError(t, err)

	err = buf.WriteAt(1, []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, []byte("abc"), buf.Slice(0))
}

func TestByteBufferExtendAndMutSlice(t *testing.T) {
	buf := NewByteBuffer(16, 16)
	dst := buf.MutSlice(0)
	copy(dst, []byte("xyz"))
	buf.Extend(3)

	assert.Equal(t, []byte("xyz"), buf.Slice(0))
}

func TestByteBufferMarkResetFromRoundTrip(t *testing.T) {
	buf := NewByteBuffer(16, 16)
	_, err := buf.Write([]byte("abc"))
	require.NoError(t, err)

	m := buf.Mark()

	_, err = buf.Write([]byte("def"))
	require.NoError(t, err)
	buf.Consume(3)

	buf.ResetFrom(m)
	assert.Equal(t, []byte("abc"), buf.Slice(0))
}

func TestByteBufferReserveRespectsMaxCap(t *testing.T) {
	buf := NewByteBuffer(4, 8)
	buf.Reserve(100)
	assert.Equal(t, 8, buf.Cap())

	buf.Reserve(1)
	assert.Equal(t, 8, buf.Cap(), "reserve is a no-op once maxCap is reached")
}

func TestWriteBufferedGrowsUntilSuccess(t *testing.T) {
	buf := NewByteBuffer(2, 16)

	err := WriteBuffered(buf, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), buf.Slice(0))
	assert.LessOrEqual(t, buf.Cap(), 16)
}

func TestWriteBufferedFailsPastMaxCap(t *testing.T) {
	buf := NewByteBuffer(2, 4)

	err := WriteBuffered(buf, []byte("too long for this buffer"))
	require.Error(t, err)

	var oc *ErrOutOfCapacity
	require.ErrorAs(t, err, &oc)
}
