//go:build integration

package store

import (
	"context"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harp/internal/wire"
)

// TestPostgresInsertBatch exercises a real pgxpool connection. It is gated
// behind HARP_TEST_DATABASE_URL so the default test run never requires a
// live Postgres instance.
func TestPostgresInsertBatch(t *testing.T) {
	url := os.Getenv("HARP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("HARP_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := Open(ctx, url, 3)
	require.NoError(t, err)
	defer pg.Close()

	record := wire.Record{
		ID:      1,
		Addr:    netip.MustParseAddr("127.0.0.1"),
		Kind:    "player_join",
		Created: time.Now().UTC(),
	}

	require.NoError(t, pg.InsertBatch(ctx, []wire.Record{record}))
}
