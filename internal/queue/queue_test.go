package queue

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"harp/internal/wire"
)

func makeRecord(id uint32) wire.Record {
	return wire.Record{
		ID:   id,
		Addr: netip.MustParseAddr("127.0.0.1"),
		Kind: "test",
	}
}

func TestTryAppendThenGrow(t *testing.T) {
	q := New(1, 0)
	require.True(t, q.TryAppend(makeRecord(1)))
	require.False(t, q.TryAppend(makeRecord(2))) // at capacity
	require.True(t, q.Grow(makeRecord(2)))
	require.Equal(t, 2, q.Len())
}

func TestGrowRefusedAtHardCap(t *testing.T) {
	q := New(1, 1) // hard cap equal to initial cap: no room to grow
	require.True(t, q.TryAppend(makeRecord(1)))
	require.False(t, q.Grow(makeRecord(2)))
}

func TestDrainLimitAndFIFOOrder(t *testing.T) {
	q := New(0, 0)
	for i := uint32(0); i < 20000; i++ {
		if !q.TryAppend(makeRecord(i)) {
			require.True(t, q.Grow(makeRecord(i)))
		}
	}
	require.Equal(t, 20000, q.Len())

	first := q.Drain(DrainLimit)
	require.Len(t, first, DrainLimit)
	require.Equal(t, uint32(0), first[0].ID)
	require.Equal(t, uint32(DrainLimit-1), first[len(first)-1].ID)

	require.Equal(t, 20000-DrainLimit, q.Len())

	second := q.Drain(DrainLimit)
	require.Len(t, second, 20000-DrainLimit)
	require.Equal(t, uint32(DrainLimit), second[0].ID)

	require.Equal(t, 0, q.Len())
}

func TestDrainEmptyQueue(t *testing.T) {
	q := New(10, 0)
	require.Nil(t, q.Drain(DrainLimit))
}

func TestSetHardCapLiveUpdatesGrowth(t *testing.T) {
	q := New(1, 0) // starts unbounded
	require.True(t, q.TryAppend(makeRecord(1)))
	require.True(t, q.Grow(makeRecord(2))) // no cap yet, grows freely

	q.SetHardCap(q.Len()) // cap exactly at current size: no room left
	require.False(t, q.Grow(makeRecord(3)))

	q.SetHardCap(0) // 0 disables the cap again
	require.True(t, q.Grow(makeRecord(3)))
}
