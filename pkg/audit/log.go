package audit

import (
	"context"
	"log/slog"
)

// LogSink writes audit events to a structured logger. It is the default
// sink when no durable audit store is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger, or slog.Default when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, event Event) error {
	args := []any{
		"actor_id", event.ActorID,
		"action", string(event.Action),
		"resource_type", event.ResourceType,
		"resource_id", event.ResourceID,
	}
	for k, v := range event.Details {
		args = append(args, "detail_"+k, v)
	}
	s.logger.InfoContext(ctx, "audit event", args...)
	return nil
}
