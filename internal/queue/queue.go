// Package queue implements the server's shared in-memory record queue and
// the batching flusher that drains it into a store.
package queue

import (
	"sync"

	"harp/internal/wire"
)

// growthReservation is the slot count the queue grows by when it's full
// and a handler needs room for one more record.
const growthReservation = 100

// Queue is the server's shared in-memory record queue. It is guarded by a
// single mutex; the spec defines no reader-only paths, so a plain Mutex is
// used rather than an RWMutex.
type Queue struct {
	mu       sync.Mutex
	records  []wire.Record
	cap      int
	hardCap  int
	hasCap   bool
}

// New creates a Queue with the given initial capacity hint. hardCap, if
// greater than 0, is the maximum the queue will ever grow to; 0 means
// unbounded growth (bounded only by the allocator, mirroring the original's
// try-reserve-or-refuse discipline via Go's own allocator failures, which
// in practice never return an error — see Grow).
func New(initialCap, hardCap int) *Queue {
	return &Queue{
		records: make([]wire.Record, 0, initialCap),
		cap:     initialCap,
		hardCap: hardCap,
		hasCap:  hardCap > 0,
	}
}

// TryAppend appends r without growing the queue beyond its current
// capacity. It returns false if the queue is full, in which case the
// caller should attempt Grow.
func (q *Queue) TryAppend(r wire.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) >= q.cap {
		return false
	}
	q.records = append(q.records, r)
	return true
}

// Grow attempts to reserve growthReservation additional slots and append r.
// It returns false only if growing would exceed a configured hard cap —
// the server's stand-in for "the allocator refused", since Go's allocator
// does not return recoverable out-of-memory errors the way the original
// runtime's try_reserve does.
func (q *Queue) Grow(r wire.Record) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	newCap := q.cap + growthReservation
	if q.hasCap && newCap > q.hardCap {
		return false
	}

	grown := make([]wire.Record, len(q.records), newCap)
	copy(grown, q.records)
	q.records = append(grown, r)
	q.cap = newCap
	return true
}

// SetHardCap updates the queue's hard cap in place. A value of 0 or less
// makes growth unbounded. Intended for a periodic capacity sampler that
// re-derives the cap from current memory pressure.
func (q *Queue) SetHardCap(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hardCap = n
	q.hasCap = n > 0
}

// Len reports the current number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Drain removes and returns up to limit records from the head of the
// queue, leaving the tail in place.
func (q *Queue) Drain(limit int) []wire.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return nil
	}
	n := limit
	if n > len(q.records) {
		n = len(q.records)
	}

	batch := make([]wire.Record, n)
	copy(batch, q.records[:n])
	q.records = q.records[n:]
	return batch
}
