// Package metrics defines the Prometheus collectors exposed by the harp
// collector daemon and a small HTTP server to serve them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics groups every collector the collector daemon exposes.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	ReserveQueueDepth prometheus.Gauge
	RecordsEnqueued   prometheus.Counter
	RecordsDrained    prometheus.Counter
	RecordsBounced    prometheus.Counter
	FlushDuration     prometheus.Histogram
	FlushBatchSize    prometheus.Histogram
	DatabaseErrors    prometheus.Counter
	ActiveConnections prometheus.Gauge
	ClientReconnects  prometheus.Counter
}

// New registers and returns the collector set against registry.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "harp",
			Subsystem: "server",
			Name:      "queue_depth",
			Help:      "Current number of records held in the shared in-memory queue.",
		}),
		ReserveQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "harp",
			Subsystem: "client",
			Name:      "reserve_queue_depth",
			Help:      "Current number of bounced frames awaiting resend.",
		}),
		RecordsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harp",
			Subsystem: "server",
			Name:      "records_enqueued_total",
			Help:      "Records appended to the shared queue.",
		}),
		RecordsDrained: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harp",
			Subsystem: "server",
			Name:      "records_drained_total",
			Help:      "Records drained from the shared queue by the flusher.",
		}),
		RecordsBounced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harp",
			Subsystem: "server",
			Name:      "records_bounced_total",
			Help:      "Records returned to the originating client because the queue could not grow.",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harp",
			Subsystem: "flusher",
			Name:      "flush_duration_seconds",
			Help:      "Wall time spent executing one batch insert.",
			Buckets:   prometheus.DefBuckets,
		}),
		FlushBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harp",
			Subsystem: "flusher",
			Name:      "flush_batch_size",
			Help:      "Number of records written by one batch insert.",
			Buckets:   []float64{1, 10, 100, 1000, 5000, 13107},
		}),
		DatabaseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harp",
			Subsystem: "flusher",
			Name:      "database_errors_total",
			Help:      "Flush attempts that failed and were discarded.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "harp",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Currently connected client peers.",
		}),
		ClientReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "harp",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Successful client reconnect attempts.",
		}),
	}
}

// Server serves the registered collectors over /metrics.
type Server struct {
	http *http.Server
}

// NewServer builds a metrics HTTP server bound to addr, serving registry.
func NewServer(addr string, registry *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		return err
	}
}
