package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink is the fast transient channel: events go to the structured log.
// It never fails, which makes it a safe secondary for local development.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink over the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, ev *Event) error {
	s.logger.Info("audit_event",
		zap.String("decision_id", ev.DecisionID),
		zap.Uint64("sequence", ev.Sequence),
		zap.String("event_type", string(ev.Type)),
		zap.Time("timestamp", ev.Timestamp),
		zap.Any("payload", ev.Payload),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
