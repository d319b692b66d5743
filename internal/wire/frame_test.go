package wire

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := NewFrameWriter(client)
	reader := NewFrameReader(server, 0)

	payload := []byte("hello frame")

	errCh := make(chan error, 1)
	go func() {
		errCh <- writer.WriteFrame(context.Background(), payload)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := reader.ReadFrame(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-errCh)
}

func TestFrameOversizeRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := NewFrameWriter(client)
	reader := NewFrameReader(server, 128)

	payload := make([]byte, 2048)

	go func() {
		_ = writer.WriteFrame(context.Background(), payload)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := reader.ReadFrame(ctx)
	require.Error(t, err)

	var tooLarge *ErrFrameTooLarge
	require.ErrorAs(t, err, &tooLarge)
	require.Equal(t, 2048, tooLarge.Length)
	require.Equal(t, 128, tooLarge.Maximum)
}

func TestFrameReadCancellation(t *testing.T) {
	_, server := net.Pipe()
	defer server.Close()

	reader := NewFrameReader(server, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reader.ReadFrame(ctx)
	require.Error(t, err)
}
