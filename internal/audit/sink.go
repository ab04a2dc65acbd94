package audit

import "context"

// Sink is one audit write channel. Write must respect the context deadline;
// the emitter bounds each attempt so a slow sink cannot stall a decision.
type Sink interface {
	// Name identifies the sink in logs and degraded-write records.
	Name() string

	// Write persists a single event. A nil return means the sink accepted
	// and acknowledged the event.
	Write(ctx context.Context, ev *Event) error

	// Close releases the sink's resources.
	Close() error
}
