// Package audit serializes the decision lifecycle into structured events and
// dual-writes them across two independent sinks.
package audit

import "time"

// EventType is one stage of the decision lifecycle.
type EventType string

const (
	EventRequested          EventType = "requested"
	EventEvaluated          EventType = "evaluated"
	EventApproved           EventType = "approved"
	EventRejected           EventType = "rejected"
	EventConstraintsApplied EventType = "constraints_applied"
)

// Event is one audit record. Events are append-only and immutable once
// written; Sequence is monotonic and gap-free within a decision.
type Event struct {
	DecisionID string         `json:"decision_id"`
	Sequence   uint64         `json:"sequence"`
	Type       EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Recorder stamps events for one decision with its gap-free sequence.
// A Recorder is used by a single goroutine; decisions do not share one.
type Recorder struct {
	decisionID string
	seq        uint64
}

// NewRecorder creates a Recorder for a decision. Sequences start at 1.
func NewRecorder(decisionID string) *Recorder {
	return &Recorder{decisionID: decisionID}
}

// DecisionID returns the decision this recorder stamps for.
func (r *Recorder) DecisionID() string { return r.decisionID }

// Next builds the next event in causal order.
func (r *Recorder) Next(t EventType, payload map[string]any) *Event {
	r.seq++
	return &Event{
		DecisionID: r.decisionID,
		Sequence:   r.seq,
		Type:       t,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}
