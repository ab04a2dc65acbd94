package governor

import (
	"time"

	"github.com/arbiterhq/gatehouse/internal/constraints"
	"github.com/arbiterhq/gatehouse/internal/engine"
)

// State is a stage of the decision pipeline. Transitions are strictly
// linear; Rejected and Approved are terminal.
type State int

const (
	StateReceived State = iota + 1
	StateEvaluating
	StateRejected
	StateRiskClassified
	StateConstraintsResolved
	StateApproved
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateEvaluating:
		return "evaluating"
	case StateRejected:
		return "rejected"
	case StateRiskClassified:
		return "risk_classified"
	case StateConstraintsResolved:
		return "constraints_resolved"
	case StateApproved:
		return "approved"
	default:
		return "unspecified"
	}
}

// DecisionResult is the engine's verdict on one creation request. The caller
// must not instantiate the agent unless Approved is true, and on approval
// must apply Constraints verbatim.
type DecisionResult struct {
	DecisionID string
	Approved   bool
	Kind       engine.DecisionKind

	Reason engine.ReasonCode // empty on approval
	Detail string

	RiskTier   engine.RiskTier
	Quarantine bool

	// Constraints is nil on rejection.
	Constraints *constraints.Constraints

	// RuleIDs lists the rule groups evaluated, in order.
	RuleIDs []string

	EvaluatedAt time.Time
}
