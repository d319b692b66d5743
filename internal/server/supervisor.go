package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"harp/internal/alert"
	"harp/internal/metrics"
	"harp/internal/queue"
	"harp/internal/store"
)

// initialQueueCap is the shared queue's starting capacity hint.
const initialQueueCap = 100

// Config configures Supervisor.
type Config struct {
	Addr          string
	MaxPacketSize int
	FlushInterval time.Duration

	// QueueReserveFraction and QueueEstBytesPerRecord feed the capacity
	// sampler's derivation of the shared queue's hard cap:
	// MaxQueueRecords = (availableMemory * QueueReserveFraction) / QueueEstBytesPerRecord.
	QueueReserveFraction   float64
	QueueEstBytesPerRecord int
}

// Supervisor binds the listener, creates the shared queue, and spawns the
// flusher, the capacity sampler, and a handler goroutine per accepted
// connection.
type Supervisor struct {
	cfg      Config
	store    store.Store
	metrics  *metrics.Metrics
	alert    *alert.Publisher
	logger   *zap.Logger
	listener net.Listener
	queue    *queue.Queue
	sampler  *capacitySampler
}

// NewSupervisor builds a Supervisor. Bind is deferred to Run. The queue
// starts with no hard cap; Run primes it with one synchronous capacity
// sample before accepting any connections.
func NewSupervisor(cfg Config, s store.Store, m *metrics.Metrics, alertPub *alert.Publisher, logger *zap.Logger) *Supervisor {
	q := queue.New(initialQueueCap, 0)
	return &Supervisor{
		cfg:     cfg,
		store:   s,
		metrics: m,
		alert:   alertPub,
		logger:  logger,
		queue:   q,
		sampler: newCapacitySampler(q, cfg.QueueReserveFraction, cfg.QueueEstBytesPerRecord, logger),
	}
}

// Run binds the listener and serves until ctx is cancelled. On
// cancellation it stops accepting, lets in-flight handlers finish their
// current frame, and runs one final flush pass draining the entire queue
// before returning — a best-effort drain-on-shutdown, since the spec
// leaves "no shutdown protocol" as an open question.
func (s *Supervisor) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	defer ln.Close()

	// The flusher gets its own context so its drain-on-shutdown pass starts
	// only after every handler has returned.
	flushCtx, stopFlusher := context.WithCancel(context.Background())
	defer stopFlusher()
	flusher := queue.NewFlusher(s.queue, s.store, s.cfg.FlushInterval, s.metrics, s.alert, s.logger)
	flusherDone := make(chan struct{})
	go func() {
		flusher.Run(flushCtx)
		close(flusherDone)
	}()

	// Prime the hard cap synchronously so the bounce mechanism is live
	// before the first connection is ever accepted.
	s.sampler.sampleOnce()
	go s.sampler.run(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.logger.Info("harp: listening", zap.String("addr", s.cfg.Addr))

	var handlers sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				// Let in-flight handlers finish, then wait for the
				// flusher's final drain-on-shutdown pass before
				// returning, so callers see a complete drain.
				handlers.Wait()
				stopFlusher()
				<-flusherDone
				return nil
			}
			s.logger.Warn("harp: accept error", zap.Error(err))
			continue
		}

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			handleConn(ctx, conn, s.queue, s.cfg.MaxPacketSize, s.metrics, s.alert, s.logger)
		}()
	}
}
