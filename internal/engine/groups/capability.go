package groups

import (
	"context"
	"fmt"

	"github.com/arbiterhq/gatehouse/internal/engine"
)

// ConfigurationConstraints is rule group C: ethics.human_override must read
// its immutable value, declared capability levels must not exceed the agent
// type's static ceiling, and metadata must satisfy the template's schema.
type ConfigurationConstraints struct{}

// NewConfigurationConstraints creates group C.
func NewConfigurationConstraints() *ConfigurationConstraints {
	return &ConfigurationConstraints{}
}

func (g *ConfigurationConstraints) ID() string { return "configuration_constraints" }

func (g *ConfigurationConstraints) Evaluate(_ context.Context, in *engine.EvalInput) engine.GroupResult {
	res := engine.GroupResult{RuleID: g.ID(), Passed: true}
	cfg := in.Request.Config

	fail := func(detail string) engine.GroupResult {
		res.Passed = false
		res.Reason = engine.ReasonCapabilityEscalation
		res.Detail = detail
		return res
	}

	// Immutability check: the field must equal the value, not merely exist.
	if cfg.Ethics.HumanOverride != engine.HumanOverrideAlwaysAllowed {
		return fail(fmt.Sprintf("ethics.human_override must be %q, got %q",
			engine.HumanOverrideAlwaysAllowed, cfg.Ethics.HumanOverride))
	}

	if in.Profile == nil {
		return fail(fmt.Sprintf("no capability ceiling registered for agent type %q", cfg.AgentType))
	}

	if engine.NetworkRank(cfg.Capabilities.NetworkAccess) > engine.NetworkRank(in.Profile.MaxNetworkAccess) {
		return fail(fmt.Sprintf("network access %q exceeds ceiling %q for agent type %q",
			cfg.Capabilities.NetworkAccess, in.Profile.MaxNetworkAccess, cfg.AgentType))
	}

	if engine.AutonomyRank(cfg.Capabilities.AutonomyLevel) > engine.AutonomyRank(in.Profile.MaxAutonomy) {
		return fail(fmt.Sprintf("autonomy level %q exceeds ceiling %q for agent type %q",
			cfg.Capabilities.AutonomyLevel, in.Profile.MaxAutonomy, cfg.AgentType))
	}

	if in.Template != nil {
		if err := in.Template.ValidateMetadata(cfg.Metadata); err != nil {
			return fail(fmt.Sprintf("config metadata violates template schema: %v", err))
		}
	}

	return res
}
