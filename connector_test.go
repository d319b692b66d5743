package harp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule(t *testing.T) {
	for i := 0; i < MaxRetries; i++ {
		want := time.Duration(3*i) * time.Second
		require.Equal(t, want, backoffSchedule(i))
	}
}

func TestResolveAddrDefaults(t *testing.T) {
	addr := resolveAddr("", 0)
	require.Equal(t, "127.0.0.1", addr.Addr().String())
	require.EqualValues(t, 7777, addr.Port())
}

func TestResolveAddrBadHostFallsBack(t *testing.T) {
	addr := resolveAddr("not-an-ip", 0)
	require.Equal(t, "127.0.0.1", addr.Addr().String())
	require.EqualValues(t, 7777, addr.Port())
}

func TestResolveAddrExplicit(t *testing.T) {
	addr := resolveAddr("255.255.255.255", 7000)
	require.Equal(t, "255.255.255.255", addr.Addr().String())
	require.EqualValues(t, 7000, addr.Port())
}
