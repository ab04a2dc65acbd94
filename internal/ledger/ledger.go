package ledger

import (
	"context"
	"errors"
)

// ErrBudgetInsufficient means the reservation cost exceeds the pool's usable
// budget (available credits minus the configured reserve fraction).
var ErrBudgetInsufficient = errors.New("ledger: insufficient usable budget")

// ErrPopulationLimit means the live population for the agent type is already
// at its configured ceiling.
var ErrPopulationLimit = errors.New("ledger: population limit reached")

// ErrUnknownPool means no budget pool exists for the given pool ID.
var ErrUnknownPool = errors.New("ledger: unknown budget pool")

// ErrUnknownAgentType means no population ceiling is registered for the type.
var ErrUnknownAgentType = errors.New("ledger: unknown agent type")

// Reservation is a held budget/population slot for one in-flight decision.
type Reservation struct {
	ID        string
	Pool      string
	AgentType string
	Cost      float64
}

// Ledger tracks the two shared mutable resources of the engine: per-pool
// available budget and per-agent-type live population. Reserve is the atomic
// check-and-take for both; a plain read followed by a write is a correctness
// bug under concurrent decisions.
type Ledger interface {
	// Reserve atomically checks usable budget and population headroom and,
	// if both pass, takes the slot. Returns ErrBudgetInsufficient or
	// ErrPopulationLimit when the corresponding check fails.
	Reserve(ctx context.Context, pool, agentType string, cost float64) (*Reservation, error)

	// Commit finalizes a reservation after the decision is approved and its
	// terminal audit event is durably recorded.
	Commit(ctx context.Context, res *Reservation) error

	// Release returns a held reservation's budget and population slot, used
	// when a decision rejects or fails after group D reserved.
	Release(ctx context.Context, res *Reservation) error
}
