// Package store writes batches of drained records into Postgres.
package store

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"harp/internal/wire"
)

// fieldsPerRow is the number of bind parameters one record contributes to
// the batch INSERT; together with Postgres's 65535 bind-parameter limit
// this determines the flusher's per-tick drain limit (see internal/queue).
const fieldsPerRow = 5

// Store persists batches of records. It is an interface so tests can
// substitute a fake rather than requiring a live Postgres instance.
type Store interface {
	InsertBatch(ctx context.Context, records []wire.Record) error
}

// Postgres is a Store backed by a pgxpool connection pool, grounded on the
// bulk-insert pooling pattern used for bind-limit-aware batch loads.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL with the given pool size and verifies
// connectivity, retrying transient dial failures a handful of times before
// giving up.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * 200 * time.Millisecond
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		pool, lastErr = pgxpool.ConnectConfig(ctx, cfg)
		if lastErr == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return &Postgres{pool: pool}, nil
			} else {
				lastErr = pingErr
				pool.Close()
			}
		}
		if !isTransient(lastErr) {
			break
		}
	}

	return nil, fmt.Errorf("store: connect after retries: %w", lastErr)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "dial error") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused")
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// InsertBatch builds and executes a single multi-row INSERT, one
// parameter group per record, in drained order. On error the caller
// discards the whole batch; there is no retry or dead-letter path.
func (p *Postgres) InsertBatch(ctx context.Context, records []wire.Record) error {
	if len(records) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO harp.actions (unique_id, ip_address, kind, detail, created) VALUES ")

	args := make([]any, 0, len(records)*fieldsPerRow)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * fieldsPerRow
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)

		var detail any
		if len(r.Detail) > 0 {
			detail = []byte(r.Detail)
		}

		cidr := netip.PrefixFrom(r.Addr, r.Addr.BitLen()).String()
		args = append(args, r.ID, cidr, r.Kind, detail, r.Created)
	}

	_, err := p.pool.Exec(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("store: insert batch of %d: %w", len(records), err)
	}
	return nil
}

