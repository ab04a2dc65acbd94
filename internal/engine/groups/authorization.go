package groups

import (
	"context"
	"fmt"

	"github.com/arbiterhq/gatehouse/internal/engine"
)

// Authorization is rule group A: the actor must hold the single privileged
// role permitted to create agents, and the platform kill-switch must be
// inactive. The kill-switch is checked even when the role check fails, as
// defense in depth; the role failure is reported first.
type Authorization struct {
	privilegedRole string
	killswitch     bool // configured platform-wide halt
}

// NewAuthorization creates group A with the configured privileged role and
// the platform kill-switch state.
func NewAuthorization(privilegedRole string, killswitch bool) *Authorization {
	return &Authorization{
		privilegedRole: privilegedRole,
		killswitch:     killswitch,
	}
}

func (g *Authorization) ID() string { return "authorization" }

func (g *Authorization) Evaluate(_ context.Context, in *engine.EvalInput) engine.GroupResult {
	res := engine.GroupResult{RuleID: g.ID(), Passed: true}

	killswitchActive := g.killswitch || in.Request.KillswitchActive

	if in.Request.Actor.Role != g.privilegedRole {
		res.Passed = false
		res.Reason = engine.ReasonUnauthorizedRole
		res.Detail = fmt.Sprintf("role %q may not create agents", in.Request.Actor.Role)
		if killswitchActive {
			res.Detail += "; kill-switch also active"
		}
		return res
	}

	if killswitchActive {
		res.Passed = false
		res.Reason = engine.ReasonKillswitchActive
		res.Detail = "agent creation kill-switch is active"
	}

	return res
}
