// Package server implements the collector daemon's TCP ingest side: the
// per-connection frame handler and the supervisor that binds the listener.
package server

import (
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"harp/internal/alert"
	"harp/internal/logging"
	"harp/internal/metrics"
	"harp/internal/queue"
	"harp/internal/wire"
)

// handleConn services one accepted peer until it disconnects, sends an
// oversize frame, or the stream fails. Record-level errors (decode failure,
// bad address, bad JSON) never close the connection. Any other read error
// (including ctx cancellation) or a failed bounce write closes it; a read
// error is not retried.
func handleConn(ctx context.Context, conn net.Conn, q *queue.Queue, maxPacketSize int, m *metrics.Metrics, alertPub *alert.Publisher, logger *zap.Logger) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	reader := wire.NewFrameReader(conn, maxPacketSize)
	writer := wire.NewFrameWriter(conn)

	m.ActiveConnections.Inc()
	defer m.ActiveConnections.Dec()

	for {
		payload, err := reader.ReadFrame(ctx)
		if err != nil {
			var tooLarge *wire.ErrFrameTooLarge
			if errors.As(err, &tooLarge) {
				logging.Audit(logger, logging.EventFrameOversize,
					zap.String("peer", peer), zap.Int("length", tooLarge.Length), zap.Int("max", tooLarge.Maximum))
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("harp: peer closed connection", zap.String("peer", peer))
				return
			}
			logger.Warn("harp: frame read error, closing connection", zap.String("peer", peer), zap.Error(err))
			return
		}

		record, err := wire.Decode(payload)
		if err != nil {
			logging.Audit(logger, logging.EventDecodeError, zap.String("peer", peer), zap.Error(err))
			continue
		}

		if q.TryAppend(record) {
			m.RecordsEnqueued.Inc()
			m.QueueDepth.Set(float64(q.Len()))
			continue
		}

		if q.Grow(record) {
			m.RecordsEnqueued.Inc()
			m.QueueDepth.Set(float64(q.Len()))
			continue
		}

		// Queue growth refused: bounce the exact frame back to the peer.
		logging.Audit(logger, logging.EventQueueBounced, zap.String("peer", peer), zap.Uint32("id", record.ID))
		m.RecordsBounced.Inc()
		alertPub.Publish("queue_growth_exhausted", peer)
		if err := writer.WriteFrame(ctx, payload); err != nil {
			logger.Warn("harp: bounce write failed, closing connection", zap.String("peer", peer), zap.Error(err))
			return
		}
	}
}
