// Package alert publishes operator-facing CRITICAL events to an optional
// NATS bus.
package alert

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Subject is the NATS subject CRITICAL events are published to.
const Subject = "harp.alerts"

// alertInterval bounds each distinct alert reason to at most one
// publication per interval, so a storm of the same CRITICAL condition
// (e.g. repeated bounces) doesn't flood the alert bus.
const alertInterval = 60 * time.Second

// Event is the JSON envelope published for each CRITICAL condition.
type Event struct {
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends CRITICAL operational events to NATS. A Publisher built
// with an empty URL is a no-op, so callers don't need to branch on whether
// alerting is configured.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New connects to natsURL. An empty natsURL returns a no-op Publisher.
func New(natsURL string, logger *zap.Logger) (*Publisher, error) {
	if natsURL == "" {
		return &Publisher{logger: logger, limiters: make(map[string]*rate.Limiter)}, nil
	}

	conn, err := nats.Connect(natsURL,
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("harp: alert bus reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			logger.Warn("harp: alert bus disconnected", zap.Error(err))
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			logger.Warn("harp: alert bus error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, logger: logger, limiters: make(map[string]*rate.Limiter)}, nil
}

// allow reports whether reason may be published now, admitting at most one
// publication per reason per alertInterval.
func (p *Publisher) allow(reason string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, ok := p.limiters[reason]
	if !ok {
		lim = rate.NewLimiter(rate.Every(alertInterval), 1)
		p.limiters[reason] = lim
	}
	return lim.Allow()
}

// Publish sends one CRITICAL event, rate-limited per reason so callers can
// call Publish unconditionally on every occurrence of a condition without
// flooding the alert bus. It never returns an error to the caller beyond
// logging — alerting is a best-effort side channel, not part of the
// pipeline's correctness contract.
func (p *Publisher) Publish(reason, detail string) {
	if p.conn == nil {
		return
	}
	if !p.allow(reason) {
		return
	}

	payload, err := json.Marshal(Event{Reason: reason, Detail: detail, Timestamp: time.Now().UTC()})
	if err != nil {
		p.logger.Warn("harp: alert marshal failed", zap.Error(err))
		return
	}

	if err := p.conn.Publish(Subject, payload); err != nil {
		p.logger.Warn("harp: alert publish failed", zap.Error(err))
	}
}

// Close closes the underlying connection, if any, without draining it.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
