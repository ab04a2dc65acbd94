package engine

import (
	"context"

	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/ledger"
	"go.uber.org/zap"
)

// Group is one ordered rule group. Implementations must be deterministic for
// a fixed (input, configuration) pair and must never panic on malformed but
// well-typed input; malformed input is itself a failing outcome.
type Group interface {
	// ID returns the group's stable rule identifier.
	ID() string

	// Evaluate applies the group's rules to the input.
	Evaluate(ctx context.Context, in *EvalInput) GroupResult
}

// GroupResult is the tagged outcome of a single rule group.
type GroupResult struct {
	RuleID string
	Passed bool
	Reason ReasonCode // set when !Passed
	Detail string

	// Reservation is set by the budget/population group when its atomic
	// reserve succeeded. The orchestrator owns releasing or committing it.
	Reservation *ledger.Reservation
}

// EvalInput carries everything a rule group may consult. Template and
// Profile are nil when the catalog has no entry for the request's template
// or agent type.
type EvalInput struct {
	Request  *DecisionRequest
	Template *catalog.TemplateDefinition
	Profile  *catalog.AgentTypeProfile
}

// Outcome is the full evaluation result across all rule groups.
type Outcome struct {
	Rejected bool
	Reason   ReasonCode // first failing rule's code; empty when approved
	Detail   string

	// RuleIDs lists the groups that were evaluated, in order. Short-circuited
	// gate groups do not appear; the review group always does.
	RuleIDs []string
	Groups  []GroupResult

	// Reservation is the held budget/population slot, when group D ran and
	// passed. Non-nil even on a later review rejection; the caller releases it.
	Reservation *ledger.Reservation

	Customized     bool
	EscalatedPaths []string
}

// Evaluator folds the ordered rule groups over a request. Gate groups (A-D)
// short-circuit on the first failure; the review group (E) always runs so
// audit records are complete regardless of outcome, and can itself gate the
// final decision (the capability escalation check).
type Evaluator struct {
	gates  []Group
	review Group
	logger *zap.Logger
}

// NewEvaluator creates an evaluator with the given gate groups and review group.
func NewEvaluator(gates []Group, review Group, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		gates:  gates,
		review: review,
		logger: logger,
	}
}

// Evaluate runs the rule groups in fixed order and returns the collected
// outcome. It never returns an error: every failure mode is a reason code.
func (e *Evaluator) Evaluate(ctx context.Context, in *EvalInput) *Outcome {
	out := &Outcome{
		Customized:     in.Request.Context.Customized(),
		EscalatedPaths: GovernedPaths(in.Request.Context.CustomizedPaths),
	}

	for _, g := range e.gates {
		res := g.Evaluate(ctx, in)
		out.Groups = append(out.Groups, res)
		out.RuleIDs = append(out.RuleIDs, res.RuleID)
		if res.Reservation != nil {
			out.Reservation = res.Reservation
		}
		if !res.Passed {
			out.Rejected = true
			out.Reason = res.Reason
			out.Detail = res.Detail
			break
		}
	}

	// The review group runs even after a hard failure.
	res := e.review.Evaluate(ctx, in)
	out.Groups = append(out.Groups, res)
	out.RuleIDs = append(out.RuleIDs, res.RuleID)
	if !res.Passed && !out.Rejected {
		out.Rejected = true
		out.Reason = res.Reason
		out.Detail = res.Detail
	}

	e.logger.Debug("rule evaluation complete",
		zap.String("request_id", in.Request.RequestID),
		zap.Bool("rejected", out.Rejected),
		zap.String("reason", string(out.Reason)),
		zap.Strings("rules", out.RuleIDs),
	)

	return out
}
