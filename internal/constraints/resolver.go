package constraints

import (
	"fmt"

	"github.com/arbiterhq/gatehouse/internal/engine"
)

// Reducer is the extension point for future ruleset versions that let an
// approved customization narrow the default envelope. Implementations may
// only reduce; the resolver clamps their output back to the defaults, so a
// misbehaving reducer can never raise a ceiling.
type Reducer interface {
	Reduce(agentType string, req *engine.DecisionRequest, base Constraints) Constraints
}

// Resolver resolves the constraint envelope for approved agents.
type Resolver struct {
	defaults map[string]Constraints
	reducer  Reducer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithReducer installs a constraint reducer. The current ruleset ships none:
// only the unmodified defaults are applied.
func WithReducer(r Reducer) Option {
	return func(res *Resolver) { res.reducer = r }
}

// NewResolver creates a Resolver over the static per-agent-type default table.
func NewResolver(defaults map[string]Constraints, opts ...Option) *Resolver {
	r := &Resolver{defaults: defaults}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the constraint envelope for an approved request. Output
// ceilings never exceed the static defaults for the agent type, and
// LockedFields always covers the governed field paths.
func (r *Resolver) Resolve(req *engine.DecisionRequest) (*Constraints, error) {
	base, ok := r.defaults[req.Config.AgentType]
	if !ok {
		return nil, fmt.Errorf("Resolve: no constraint defaults for agent type %q", req.Config.AgentType)
	}

	resolved := base.clone()
	if r.reducer != nil {
		resolved = r.reducer.Reduce(req.Config.AgentType, req, resolved).clampTo(base)
	}

	resolved.LockedFields = union(resolved.LockedFields, governedLockedFields())
	return &resolved, nil
}

func governedLockedFields() []string {
	paths := engine.GovernedPathPrefixes()
	return append(append([]string(nil), paths...), engine.PathAutonomy)
}
