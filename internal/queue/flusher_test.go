package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"harp/internal/alert"
	"harp/internal/metrics"
	"harp/internal/wire"
)

func newTestAlert(t *testing.T) *alert.Publisher {
	t.Helper()
	pub, err := alert.New("", zap.NewNop())
	require.NoError(t, err)
	return pub
}

type fakeStore struct {
	batches  [][]wire.Record
	failNext bool
}

func (f *fakeStore) InsertBatch(ctx context.Context, records []wire.Record) error {
	if f.failNext {
		f.failNext = false
		return errors.New("fake database error")
	}
	batch := make([]wire.Record, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestFlushOnceDrainsAtMostLimit(t *testing.T) {
	q := New(0, 0)
	for i := uint32(0); i < 20000; i++ {
		if !q.TryAppend(makeRecord(i)) {
			require.True(t, q.Grow(makeRecord(i)))
		}
	}

	fs := &fakeStore{}
	flusher := NewFlusher(q, fs, time.Second, newTestMetrics(), newTestAlert(t), zap.NewNop())

	n := flusher.flushOnce(context.Background())
	require.Equal(t, DrainLimit, n)
	require.Equal(t, 20000-DrainLimit, q.Len())

	n = flusher.flushOnce(context.Background())
	require.Equal(t, 20000-DrainLimit, n)
	require.Equal(t, 0, q.Len())
}

func TestFlushOnceDiscardsBatchOnError(t *testing.T) {
	q := New(0, 0)
	q.TryAppend(makeRecord(1))

	fs := &fakeStore{failNext: true}
	flusher := NewFlusher(q, fs, time.Second, newTestMetrics(), newTestAlert(t), zap.NewNop())

	n := flusher.flushOnce(context.Background())
	require.Equal(t, 0, n)
	require.Empty(t, fs.batches)
	// Preserved limitation: the batch is gone, not requeued.
	require.Equal(t, 0, q.Len())
}
