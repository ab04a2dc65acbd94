package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable means both sinks rejected an event. The decision carrying
// that event must fail closed: an approval that cannot be recorded is not an
// approval.
var ErrUnavailable = errors.New("audit: all sinks unavailable")

const defaultSinkTimeout = 2 * time.Second

// Emitter fans each event out to two independent sinks with per-sink bounded
// timeouts. An event write succeeds if at least one sink acknowledges it; a
// single-sink failure is recorded as a degraded write and does not block the
// pipeline.
type Emitter struct {
	primary   Sink
	secondary Sink
	timeout   time.Duration
	logger    *zap.Logger
}

// EmitterConfig configures an Emitter.
type EmitterConfig struct {
	Primary   Sink
	Secondary Sink
	// SinkTimeout bounds each sink's write attempt. Defaults to 2s.
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

// NewEmitter creates an Emitter over the two sinks.
func NewEmitter(cfg EmitterConfig) *Emitter {
	timeout := cfg.SinkTimeout
	if timeout == 0 {
		timeout = defaultSinkTimeout
	}
	return &Emitter{
		primary:   cfg.Primary,
		secondary: cfg.Secondary,
		timeout:   timeout,
		logger:    cfg.Logger,
	}
}

type sinkResult struct {
	name string
	err  error
}

// Emit writes the event to both sinks in parallel and aggregates the result:
// OR over success flags. Returns ErrUnavailable (wrapped) only when both
// sinks fail.
func (e *Emitter) Emit(ctx context.Context, ev *Event) error {
	ch := make(chan sinkResult, 2)

	for _, s := range []Sink{e.primary, e.secondary} {
		go func(s Sink) {
			sctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			ch <- sinkResult{name: s.Name(), err: s.Write(sctx, ev)}
		}(s)
	}

	var failures []sinkResult
	for i := 0; i < 2; i++ {
		if res := <-ch; res.err != nil {
			failures = append(failures, res)
		}
	}

	switch len(failures) {
	case 0:
		return nil
	case 1:
		e.logger.Warn("degraded audit write, one sink failed",
			zap.String("decision_id", ev.DecisionID),
			zap.Uint64("sequence", ev.Sequence),
			zap.String("event_type", string(ev.Type)),
			zap.String("sink", failures[0].name),
			zap.Error(failures[0].err),
		)
		return nil
	default:
		e.logger.Error("audit write failed on both sinks",
			zap.String("decision_id", ev.DecisionID),
			zap.Uint64("sequence", ev.Sequence),
			zap.String("event_type", string(ev.Type)),
			zap.NamedError(failures[0].name, failures[0].err),
			zap.NamedError(failures[1].name, failures[1].err),
		)
		return fmt.Errorf("Emit: %w", ErrUnavailable)
	}
}

// Close closes both sinks.
func (e *Emitter) Close() {
	if err := e.primary.Close(); err != nil {
		e.logger.Warn("closing primary audit sink", zap.Error(err))
	}
	if err := e.secondary.Close(); err != nil {
		e.logger.Warn("closing secondary audit sink", zap.Error(err))
	}
}
