package telemetry

import (
	"context"
	"log/slog"
)

// SlogSink writes decision events to an slog.Logger.
// Useful for development when you want to see guard decisions in console.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink that writes to the given slog.Logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

// Record writes the event to the slog logger at Debug level.
func (s *SlogSink) Record(event Event) {
	attrs := []slog.Attr{
		slog.String("record_id", event.RecordID),
		slog.String("key", event.Key),
		slog.String("channel", event.Channel.String()),
		slog.String("decision", event.Decision.String()),
	}

	if event.Category != "" {
		attrs = append(attrs, slog.String("category", event.Category))
	}
	if event.Intent != "" {
		attrs = append(attrs, slog.String("intent", event.Intent))
	}
	if event.Reason != ReasonNone {
		attrs = append(attrs, slog.String("reason", event.Reason.String()))
	}
	if event.Operation != "" {
		attrs = append(attrs, slog.String("operation", event.Operation))
	}
	if event.Path != "" {
		attrs = append(attrs, slog.String("path", event.Path))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "guard", attrs...)
}

// Compile-time interface satisfaction check.
var _ Sink = (*SlogSink)(nil)
