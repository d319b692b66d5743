package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"harp/internal/alert"
	"harp/internal/logging"
	"harp/internal/metrics"
	"harp/internal/store"
)

// dbErrorAlertThreshold is the number of consecutive failed flushes that
// trigger a "sustained database errors" CRITICAL alert.
const dbErrorAlertThreshold = 3

// BindParamLimit is Postgres's maximum number of bind parameters per
// statement.
const BindParamLimit = 65535

// DrainLimit is the maximum number of records one flush drains:
// floor(BindParamLimit / fields-per-row) = 13107.
const DrainLimit = BindParamLimit / 5

// Flusher periodically drains Queue and writes the drained batch to a
// Store. Missed ticks coalesce into one, per time.Ticker's native
// behavior; the flusher never bursts to catch up.
type Flusher struct {
	queue    *Queue
	store    store.Store
	interval time.Duration
	metrics  *metrics.Metrics
	alert    *alert.Publisher
	logger   *zap.Logger

	consecutiveDBErrors int
}

// NewFlusher builds a Flusher draining queue into s every interval.
func NewFlusher(q *Queue, s store.Store, interval time.Duration, m *metrics.Metrics, alertPub *alert.Publisher, logger *zap.Logger) *Flusher {
	return &Flusher{queue: q, store: s, interval: interval, metrics: m, alert: alertPub, logger: logger}
}

// Run ticks until ctx is cancelled. On cancellation it drains the queue to
// completion — repeating flushOnce until the queue is empty — so a clean
// shutdown never silently drops records beyond the first batch. A batch
// whose insert fails is still discarded, and draining goes on with the next.
func (f *Flusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			total := 0
			for f.queue.Len() > 0 {
				total += f.flushOnce(context.Background())
			}
			f.logger.Info("harp: final flush on shutdown", zap.Int("records", total))
			return
		case <-ticker.C:
			f.flushOnce(ctx)
		}
	}
}

// flushOnce drains a single batch (at most DrainLimit records) and inserts
// it. One tick performs exactly one drain; a queue deeper than DrainLimit
// simply waits for the next tick rather than bursting to catch up.
func (f *Flusher) flushOnce(ctx context.Context) int {
	batch := f.queue.Drain(DrainLimit)
	if len(batch) == 0 {
		return 0
	}

	start := time.Now()
	err := f.store.InsertBatch(ctx, batch)
	f.metrics.FlushDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		f.metrics.DatabaseErrors.Inc()
		logging.Audit(f.logger, logging.EventDatabaseError, zap.Error(err), zap.Int("batch_size", len(batch)))
		f.consecutiveDBErrors++
		if f.consecutiveDBErrors >= dbErrorAlertThreshold {
			f.alert.Publish("sustained_database_errors", err.Error())
		}
		// Preserved limitation: the batch is discarded, not retried.
		return 0
	}

	f.consecutiveDBErrors = 0
	f.metrics.FlushBatchSize.Observe(float64(len(batch)))
	f.metrics.RecordsDrained.Add(float64(len(batch)))
	return len(batch)
}
