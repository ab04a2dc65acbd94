// Package constraints resolves the operational envelope attached to an
// approved agent from static per-agent-type default tables.
package constraints

import "sort"

// RuntimeCaps bounds the agent's model runtime settings.
type RuntimeCaps struct {
	AllowedModels  []string
	MaxTokens      int
	MaxTemperature float64
}

// Constraints is the resolved operational envelope for an approved agent.
// The creation caller must apply it verbatim.
type Constraints struct {
	BudgetPerTask float64
	BudgetPerDay  float64

	NetworkScopes     []string
	AllowedTools      []string
	AllowedConnectors []string

	MaxParallelTasks int
	Runtime          RuntimeCaps

	// RequiresHumanActivation marks agents that must be explicitly enabled
	// by a human before first activation.
	RequiresHumanActivation bool

	// LockedFields lists field paths the created agent may never
	// self-modify. Always includes the governed ethics/capability/runtime
	// paths.
	LockedFields []string
}

// clone returns a deep copy so resolver output never aliases the default table.
func (c Constraints) clone() Constraints {
	out := c
	out.NetworkScopes = append([]string(nil), c.NetworkScopes...)
	out.AllowedTools = append([]string(nil), c.AllowedTools...)
	out.AllowedConnectors = append([]string(nil), c.AllowedConnectors...)
	out.LockedFields = append([]string(nil), c.LockedFields...)
	out.Runtime.AllowedModels = append([]string(nil), c.Runtime.AllowedModels...)
	return out
}

// clampTo lowers every ceiling of c to at most the corresponding ceiling of
// base, and intersects the scope lists. Used to guarantee a reducer can only
// narrow the envelope.
func (c Constraints) clampTo(base Constraints) Constraints {
	out := c
	if out.BudgetPerTask > base.BudgetPerTask {
		out.BudgetPerTask = base.BudgetPerTask
	}
	if out.BudgetPerDay > base.BudgetPerDay {
		out.BudgetPerDay = base.BudgetPerDay
	}
	if out.MaxParallelTasks > base.MaxParallelTasks {
		out.MaxParallelTasks = base.MaxParallelTasks
	}
	if out.Runtime.MaxTokens > base.Runtime.MaxTokens {
		out.Runtime.MaxTokens = base.Runtime.MaxTokens
	}
	if out.Runtime.MaxTemperature > base.Runtime.MaxTemperature {
		out.Runtime.MaxTemperature = base.Runtime.MaxTemperature
	}
	out.NetworkScopes = intersect(out.NetworkScopes, base.NetworkScopes)
	out.AllowedTools = intersect(out.AllowedTools, base.AllowedTools)
	out.AllowedConnectors = intersect(out.AllowedConnectors, base.AllowedConnectors)
	out.Runtime.AllowedModels = intersect(out.Runtime.AllowedModels, base.Runtime.AllowedModels)
	out.RequiresHumanActivation = out.RequiresHumanActivation || base.RequiresHumanActivation
	out.LockedFields = union(out.LockedFields, base.LockedFields)
	return out
}

func intersect(a, b []string) []string {
	allowed := make(map[string]bool, len(b))
	for _, s := range b {
		allowed[s] = true
	}
	var out []string
	for _, s := range a {
		if allowed[s] {
			out = append(out, s)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
