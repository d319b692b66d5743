package harp

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"harp/internal/alert"
	"harp/internal/metrics"
	"harp/internal/wire"
)

// retryTick is the interval at which the agent attempts to drain the
// reserve queue.
const retryTick = 3 * time.Second

// reserveDripLimit is the maximum number of reserve-queue frames resent per
// retry tick.
const reserveDripLimit = 10

// Options configures Connect. A zero-value Options connects to the default
// address with a no-op logger. Metrics and Alert are both optional: a
// producer application embedding Agent need not wire either.
type Options struct {
	Host   string
	Port   uint16
	Logger *zap.Logger

	Metrics *metrics.Metrics
	Alert   *alert.Publisher
}

// Agent is the client-side transport: a single cooperative task that
// multiplexes outbound producer records, inbound bounced frames, and the
// reserve-queue retry tick over a reconnecting TCP connection.
type Agent struct {
	connector *connector
	conn      net.Conn
	writer    *wire.FrameWriter

	outbound *unboundedActions
	reserve  [][]byte

	retryLimiter *rate.Limiter
	logger       *zap.Logger

	metrics *metrics.Metrics
	alert   *alert.Publisher
}

// Connect dials (host, port) once. The initial dial is not retried; only
// connections that later fail are subject to the reconnect/backoff
// schedule (see ConnectWithOptions).
func Connect(host string, port uint16) (*Agent, error) {
	return ConnectWithOptions(context.Background(), Options{Host: host, Port: port})
}

// ConnectWithOptions is Connect with explicit address resolution and
// logging control.
func ConnectWithOptions(ctx context.Context, opts Options) (*Agent, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := newConnector(opts.Host, opts.Port)
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: initial connect: %v", ErrConnectionFailed, err)
	}

	return &Agent{
		connector:    c,
		conn:         conn,
		writer:       wire.NewFrameWriter(conn),
		outbound:     newUnboundedActions(),
		retryLimiter: rate.NewLimiter(rate.Every(retryTick/reserveDripLimit), reserveDripLimit),
		logger:       logger,
		metrics:      opts.Metrics,
		alert:        opts.Alert,
	}, nil
}

// Sender returns a cheaply-cloneable handle producers use to enqueue
// Actions. Dropping every Sender does not stop the agent; Run only exits on
// ctx cancellation or a fatal connection failure.
func (a *Agent) Sender() Sender {
	return Sender{ch: a.outbound.in}
}

// Run drives the agent until ctx is cancelled (returns nil) or the
// connector exhausts its backoff schedule (returns ErrConnectionFailed).
func (a *Agent) Run(ctx context.Context) error {
	readCh, readErrCh := a.startReader(a.conn)
	ticker := time.NewTicker(retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case payload := <-readCh:
			// The server only ever sends back frames it could not
			// accept; push the raw bytes onto the reserve queue
			// without decoding.
			a.reserve = append(a.reserve, payload)
			if a.metrics != nil {
				a.metrics.ReserveQueueDepth.Set(float64(len(a.reserve)))
			}

		case err := <-readErrCh:
			a.logger.Warn("harp: connection lost, reconnecting", zap.Error(err))
			conn, rerr := a.connector.reconnect(ctx)
			if rerr != nil {
				if a.alert != nil {
					a.alert.Publish("connector_exhausted", rerr.Error())
				}
				return rerr
			}
			if a.metrics != nil {
				a.metrics.ClientReconnects.Inc()
			}
			a.swapConn(conn)
			readCh, readErrCh = a.startReader(conn)

		case act := <-a.outbound.out:
			if err := a.sendAction(act); err != nil {
				a.logger.Warn("harp: send failed, dropping record", zap.Error(err))
				conn, rerr := a.connector.reconnect(ctx)
				if rerr != nil {
					if a.alert != nil {
						a.alert.Publish("connector_exhausted", rerr.Error())
					}
					return rerr
				}
				if a.metrics != nil {
					a.metrics.ClientReconnects.Inc()
				}
				a.swapConn(conn)
				readCh, readErrCh = a.startReader(conn)
			}

		case <-ticker.C:
			a.drainReserve(ctx)
		}
	}
}

func (a *Agent) startReader(conn net.Conn) (<-chan []byte, <-chan error) {
	frameCh := make(chan []byte)
	errCh := make(chan error, 1)
	reader := wire.NewFrameReader(conn, 0)

	go func() {
		for {
			payload, err := reader.ReadFrame(context.Background())
			if err != nil {
				errCh <- err
				return
			}
			frameCh <- payload
		}
	}()

	return frameCh, errCh
}

func (a *Agent) swapConn(conn net.Conn) {
	_ = a.conn.Close()
	a.conn = conn
	a.writer = wire.NewFrameWriter(conn)
}

func (a *Agent) sendAction(act Action) error {
	payload, err := wire.Encode(act.toRecord())
	if err != nil {
		a.logger.Warn("harp: encode failed, dropping record", zap.Error(err))
		return nil
	}
	return a.writer.WriteFrame(context.Background(), payload)
}

// drainReserve removes and resends up to reserveDripLimit frames from the
// reserve queue, paced by retryLimiter so a recovering server isn't
// re-overwhelmed.
func (a *Agent) drainReserve(ctx context.Context) {
	n := len(a.reserve)
	if n > reserveDripLimit {
		n = reserveDripLimit
	}

	for i := 0; i < n; i++ {
		if !a.retryLimiter.Allow() {
			break
		}
		payload := a.reserve[0]
		if err := a.writer.WriteFrame(ctx, payload); err != nil {
			a.logger.Warn("harp: reserve resend failed", zap.Error(err))
			break
		}
		a.reserve = a.reserve[1:]
	}

	if a.metrics != nil {
		a.metrics.ReserveQueueDepth.Set(float64(len(a.reserve)))
	}
}
