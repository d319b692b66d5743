package harp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"harp/internal/wire"
)

func TestDrainReserveCapsAtTenPerTick(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	reader := wire.NewFrameReader(client, 0)

	received := make(chan []byte, 32)
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			payload, err := reader.ReadFrame(ctx)
			cancel()
			if err != nil {
				close(received)
				return
			}
			received <- payload
		}
	}()

	a := &Agent{
		writer:       wire.NewFrameWriter(server),
		retryLimiter: rate.NewLimiter(rate.Every(retryTick/reserveDripLimit), reserveDripLimit),
		logger:       zap.NewNop(),
	}
	for i := 0; i < 25; i++ {
		a.reserve = append(a.reserve, []byte{byte(i)})
	}

	a.drainReserve(context.Background())

	require.Len(t, a.reserve, 15)

	for i := 0; i < reserveDripLimit; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("expected %d frames, only received %d", reserveDripLimit, i)
		}
	}
}

func TestSenderDeliversToAgentOutbound(t *testing.T) {
	u := newUnboundedActions()
	s := Sender{ch: u.in}

	a := New(HarpID{ID: 1}, StringKind("test_kind"))
	s.Send(a)

	select {
	case got := <-u.out:
		require.Equal(t, a.Kind, got.Kind)
		require.Equal(t, a.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("action never reached the outbound queue")
	}
}
