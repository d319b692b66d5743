// Package logging builds the structured logger used throughout the harp
// collector daemon and client agent.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON zap.Logger at the given level ("debug", "info", "warn",
// "error"; defaults to "info" on an unrecognized value).
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Named operational events the spec calls out as loggable. Each is emitted
// as a structured field rather than a bespoke encoder, since zap already
// owns the JSON encoding.
const (
	EventQueueBounced      = "queue_bounced"
	EventFrameOversize     = "frame_oversize"
	EventDecodeError       = "decode_error"
	EventDatabaseError     = "database_error"
	EventConnectionFailed  = "connection_failed"
	EventReconnectAttempt  = "reconnect_attempt"
)

// Audit logs one of the named operational events at warn level, attaching
// any extra structured fields the caller provides.
func Audit(logger *zap.Logger, event string, fields ...zap.Field) {
	logger.Warn(event, append([]zap.Field{zap.String("event", event)}, fields...)...)
}
