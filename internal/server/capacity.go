package server

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"harp/internal/queue"
)

// capacitySampleInterval is how often the resource sampler checks process
// memory pressure and re-derives the queue's hard cap.
const capacitySampleInterval = 10 * time.Second

// capacitySampler periodically samples system memory via gopsutil and
// derives the shared queue's hard cap from it: MaxQueueRecords =
// (availableMemory * reserveFraction) / estBytesPerRecord. This is the
// "hard cap derived from the process's memory-reservation policy" the spec
// calls for — the queue's Grow only ever refuses once this sampler has
// pushed a live limit into it.
type capacitySampler struct {
	queue             *queue.Queue
	reserveFraction   float64
	estBytesPerRecord int
	logger            *zap.Logger

	lastPercent    float64
	lastMaxRecords int
}

func newCapacitySampler(q *queue.Queue, reserveFraction float64, estBytesPerRecord int, logger *zap.Logger) *capacitySampler {
	return &capacitySampler{
		queue:             q,
		reserveFraction:   reserveFraction,
		estBytesPerRecord: estBytesPerRecord,
		logger:            logger,
	}
}

// run samples until ctx is cancelled.
func (c *capacitySampler) run(ctx context.Context) {
	ticker := time.NewTicker(capacitySampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sampleOnce()
		}
	}
}

// sampleOnce reads current memory pressure, derives MaxQueueRecords, and
// pushes it to the queue as the live hard cap.
func (c *capacitySampler) sampleOnce() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		c.logger.Warn("harp: memory sample failed", zap.Error(err))
		return
	}

	maxRecords := int(float64(vm.Available) * c.reserveFraction / float64(c.estBytesPerRecord))
	c.queue.SetHardCap(maxRecords)

	// Only log when usage has shifted by at least 5 percentage points
	// since the last sample, or the derived cap changed, to avoid log
	// spam on a quiet system.
	if c.lastPercent == 0 || absFloat(vm.UsedPercent-c.lastPercent) >= 5 || maxRecords != c.lastMaxRecords {
		c.logger.Info("harp: memory pressure",
			zap.Float64("used_percent", vm.UsedPercent),
			zap.Uint64("available_bytes", vm.Available),
			zap.Int("max_queue_records", maxRecords))
		c.lastPercent = vm.UsedPercent
		c.lastMaxRecords = maxRecords
	}
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
