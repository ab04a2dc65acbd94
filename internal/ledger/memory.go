package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PopulationLimit configures one agent type's population ceiling.
type PopulationLimit struct {
	Max  int
	Live int // starting live count, normally 0
}

// MemoryConfig configures a MemoryLedger.
type MemoryConfig struct {
	// ReserveRatio is the fraction of available credits held back from any
	// single decision (0 <= ratio < 1).
	ReserveRatio float64

	// Pools maps pool ID to total available credits.
	Pools map[string]float64

	// Populations maps agent type to its population limit.
	Populations map[string]PopulationLimit
}

type poolState struct {
	available float64
}

type popState struct {
	live int
	max  int
}

// MemoryLedger is an in-process Ledger. All checks and mutations happen under
// one mutex, so Reserve is the required compare-and-take for concurrent
// decisions against the same pool or agent type.
type MemoryLedger struct {
	mu           sync.Mutex
	reserveRatio float64
	pools        map[string]*poolState
	populations  map[string]*popState
	held         map[string]*Reservation
}

// NewMemoryLedger creates a MemoryLedger from the given configuration.
func NewMemoryLedger(cfg MemoryConfig) *MemoryLedger {
	l := &MemoryLedger{
		reserveRatio: cfg.ReserveRatio,
		pools:        make(map[string]*poolState, len(cfg.Pools)),
		populations:  make(map[string]*popState, len(cfg.Populations)),
		held:         make(map[string]*Reservation),
	}
	for id, available := range cfg.Pools {
		l.pools[id] = &poolState{available: available}
	}
	for agentType, lim := range cfg.Populations {
		l.populations[agentType] = &popState{live: lim.Live, max: lim.Max}
	}
	return l
}

func (l *MemoryLedger) Reserve(_ context.Context, pool, agentType string, cost float64) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pools[pool]
	if !ok {
		return nil, ErrUnknownPool
	}
	pop, ok := l.populations[agentType]
	if !ok {
		return nil, ErrUnknownAgentType
	}

	usable := p.available * (1 - l.reserveRatio)
	if cost > usable {
		return nil, ErrBudgetInsufficient
	}
	if pop.live >= pop.max {
		return nil, ErrPopulationLimit
	}

	p.available -= cost
	pop.live++

	res := &Reservation{
		ID:        uuid.New().String(),
		Pool:      pool,
		AgentType: agentType,
		Cost:      cost,
	}
	l.held[res.ID] = res
	return res, nil
}

func (l *MemoryLedger) Commit(_ context.Context, res *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, res.ID)
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, res *Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[res.ID]; !ok {
		return nil // already committed or released
	}
	delete(l.held, res.ID)

	if p, ok := l.pools[res.Pool]; ok {
		p.available += res.Cost
	}
	if pop, ok := l.populations[res.AgentType]; ok && pop.live > 0 {
		pop.live--
	}
	return nil
}

// Available returns the current available credits for a pool, for tests and
// status reporting.
func (l *MemoryLedger) Available(pool string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pools[pool]; ok {
		return p.available
	}
	return 0
}

// Live returns the current live population for an agent type.
func (l *MemoryLedger) Live(agentType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pop, ok := l.populations[agentType]; ok {
		return pop.live
	}
	return 0
}
