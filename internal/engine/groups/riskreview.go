package groups

import (
	"context"
	"fmt"
	"strings"

	"github.com/arbiterhq/gatehouse/internal/engine"
)

// RiskReview is rule group E. It runs unconditionally, even after a gate
// group has already failed, so the audit record always carries its result.
// It gates the decision only through the capability escalation check: a
// customization touching any governed field path is rejected outright.
// Criticality and customization-driven risk elevation are recorded here but
// scored by the risk classifier.
type RiskReview struct{}

// NewRiskReview creates group E.
func NewRiskReview() *RiskReview {
	return &RiskReview{}
}

func (g *RiskReview) ID() string { return "risk_review" }

func (g *RiskReview) Evaluate(_ context.Context, in *engine.EvalInput) engine.GroupResult {
	res := engine.GroupResult{RuleID: g.ID(), Passed: true}

	escalated := engine.GovernedPaths(in.Request.Context.CustomizedPaths)
	if len(escalated) > 0 {
		res.Passed = false
		res.Reason = engine.ReasonCapabilityEscalation
		res.Detail = fmt.Sprintf("customization targets governed field paths: %s",
			strings.Join(escalated, ", "))
		return res
	}

	if in.Profile != nil && in.Profile.Critical {
		res.Detail = fmt.Sprintf("critical agent type %q flagged for quarantine", in.Profile.AgentType)
	}

	return res
}
