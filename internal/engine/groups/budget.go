package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/arbiterhq/gatehouse/internal/engine"
	"github.com/arbiterhq/gatehouse/internal/ledger"
)

// BudgetPopulation is rule group D: the marginal creation cost must fit the
// caller's usable budget and the agent type's live population must be below
// its ceiling. Both checks run as one atomic reserve against the ledger; on
// pass, the held reservation rides on the result for the orchestrator to
// release or commit.
//
// Ledger unavailability fails closed under BUDGET_INSUFFICIENT: a budget that
// cannot be verified is a budget that cannot be spent.
type BudgetPopulation struct {
	ledger      ledger.Ledger
	defaultPool string
}

// NewBudgetPopulation creates group D over the given ledger. defaultPool is
// used when the actor has no originating subsystem.
func NewBudgetPopulation(l ledger.Ledger, defaultPool string) *BudgetPopulation {
	if defaultPool == "" {
		defaultPool = "default"
	}
	return &BudgetPopulation{ledger: l, defaultPool: defaultPool}
}

func (g *BudgetPopulation) ID() string { return "budget_population" }

func (g *BudgetPopulation) Evaluate(ctx context.Context, in *engine.EvalInput) engine.GroupResult {
	res := engine.GroupResult{RuleID: g.ID(), Passed: true}
	req := in.Request

	cost := req.CostEstimate
	if cost == 0 && in.Profile != nil {
		cost = in.Profile.CreationCost
	}

	pool := req.Actor.Subsystem
	if pool == "" {
		pool = g.defaultPool
	}

	reservation, err := g.ledger.Reserve(ctx, pool, req.Config.AgentType, cost)
	switch {
	case err == nil:
		res.Reservation = reservation
	case errors.Is(err, ledger.ErrPopulationLimit):
		res.Passed = false
		res.Reason = engine.ReasonPopulationLimit
		res.Detail = fmt.Sprintf("live population of agent type %q is at its ceiling", req.Config.AgentType)
	case errors.Is(err, ledger.ErrBudgetInsufficient):
		res.Passed = false
		res.Reason = engine.ReasonBudgetInsufficient
		res.Detail = fmt.Sprintf("cost %.4f exceeds usable budget of pool %q", cost, pool)
	case errors.Is(err, ledger.ErrUnknownPool):
		res.Passed = false
		res.Reason = engine.ReasonBudgetInsufficient
		res.Detail = fmt.Sprintf("no budget pool %q", pool)
	case errors.Is(err, ledger.ErrUnknownAgentType):
		res.Passed = false
		res.Reason = engine.ReasonPopulationLimit
		res.Detail = fmt.Sprintf("no population ceiling registered for agent type %q", req.Config.AgentType)
	default:
		res.Passed = false
		res.Reason = engine.ReasonBudgetInsufficient
		res.Detail = fmt.Sprintf("budget ledger unavailable: %v", err)
	}

	return res
}
