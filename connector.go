package harp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// MaxRetries is the number of reconnect attempts the connector makes before
// giving up. Attempt i (0-indexed) waits BaseRetryInterval*i seconds.
const MaxRetries = 15

// BaseRetryInterval is the backoff unit, in seconds: attempt i waits 3*i.
const BaseRetryInterval = 3

// DefaultHost and DefaultPort are used whenever the configured address is
// missing or fails to parse. This relaxed-default behavior is part of the
// connector's contract, not an error path.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 7777
)

// ErrConnectionFailed is returned when the connector exhausts its backoff
// schedule without re-establishing a connection.
var ErrConnectionFailed = errors.New("harp: connection failed")

// resolveAddr implements the relaxed-default address fallback: an empty or
// unparseable host silently falls back to DefaultHost; a zero port falls
// back to DefaultPort.
func resolveAddr(host string, port uint16) netip.AddrPort {
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.IsValid() {
		addr = netip.MustParseAddr(DefaultHost)
	}
	if port == 0 {
		port = DefaultPort
	}
	return netip.AddrPortFrom(addr, port)
}

// backoffSchedule returns the wait duration before reconnect attempt i.
func backoffSchedule(i int) time.Duration {
	return time.Duration(BaseRetryInterval*i) * time.Second
}

// connector owns the current TCP connection and transparently reconnects
// it on failure using the fixed backoff schedule. The initial dial is NOT
// retried by this connector; that is handled once by the caller (Connect).
type connector struct {
	addr netip.AddrPort
}

func newConnector(host string, port uint16) *connector {
	return &connector{addr: resolveAddr(host, port)}
}

// dial performs a single connection attempt and sets TCP_NODELAY.
func (c *connector) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(c.addr.Addr().String(), strconv.Itoa(int(c.addr.Port()))))
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// reconnect retries the fixed backoff schedule (3*i seconds, i in [0,15)).
// It returns the first successful connection, or ErrConnectionFailed after
// 15 consecutive failures.
func (c *connector) reconnect(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for i := 0; i < MaxRetries; i++ {
		wait := backoffSchedule(i)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: exhausted %d attempts: %v", ErrConnectionFailed, MaxRetries, lastErr)
}
