package automation

import (
	"context"
	"log/slog"
)

// Sink receives outbound messages for notification and enrichment actions
// and for notification and integration workflow steps. Delivery is the
// sink's concern; callers never wait for it beyond Publish returning.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
}

// LogSink writes messages to a structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs every message at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "automation.sink")}
}

// Publish logs msg.
func (s *LogSink) Publish(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outbound message",
		"kind", msg.Kind,
		"lead_id", msg.LeadID,
		"target", msg.Target,
		"value", msg.Value,
		"metadata", msg.Metadata,
	)
	return nil
}
