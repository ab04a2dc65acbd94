// Package config loads the governance policy file: the ruleset version, role
// and template gates, budget reserve ratio, and the per-agent-type tables
// (population ceilings, capability ceilings, constraint defaults).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arbiterhq/gatehouse/internal/catalog"
	"github.com/arbiterhq/gatehouse/internal/constraints"
	"github.com/arbiterhq/gatehouse/internal/ledger"
)

// RuntimeCaps mirrors constraints.RuntimeCaps in the policy file.
type RuntimeCaps struct {
	AllowedModels  []string `yaml:"allowed_models"`
	MaxTokens      int      `yaml:"max_tokens"`
	MaxTemperature float64  `yaml:"max_temperature"`
}

// ConstraintDefaults is one agent type's default operational envelope.
type ConstraintDefaults struct {
	BudgetPerTask           float64     `yaml:"budget_per_task"`
	BudgetPerDay            float64     `yaml:"budget_per_day"`
	NetworkScopes           []string    `yaml:"network_scopes"`
	AllowedTools            []string    `yaml:"allowed_tools"`
	AllowedConnectors       []string    `yaml:"allowed_connectors"`
	MaxParallelTasks        int         `yaml:"max_parallel_tasks"`
	Runtime                 RuntimeCaps `yaml:"runtime"`
	RequiresHumanActivation bool        `yaml:"requires_human_activation"`
	LockedFields            []string    `yaml:"locked_fields"`
}

// AgentTypePolicy is the per-agent-type section of the policy file.
type AgentTypePolicy struct {
	MaxPopulation    int                `yaml:"max_population"`
	CreationCost     float64            `yaml:"creation_cost"`
	MaxNetworkAccess string             `yaml:"max_network_access"`
	MaxAutonomy      string             `yaml:"max_autonomy"`
	BaseRiskTier     string             `yaml:"base_risk_tier"`
	Critical         bool               `yaml:"critical"`
	Constraints      ConstraintDefaults `yaml:"constraints"`
}

// TemplatePolicy is one statically registered template (used when no
// template catalog database is wired).
type TemplatePolicy struct {
	ContentHash  string         `yaml:"content_hash"`
	AgentType    string         `yaml:"agent_type"`
	Description  string         `yaml:"description"`
	ConfigSchema map[string]any `yaml:"config_schema"`
}

// Policy is the full governance policy file.
type Policy struct {
	Version            string                     `yaml:"version"`
	PrivilegedRole     string                     `yaml:"privileged_role"`
	KillswitchActive   bool                       `yaml:"killswitch_active"`
	ReserveRatio       float64                    `yaml:"reserve_ratio"`
	TemplateAllowlist  []string                   `yaml:"template_allowlist"`
	CriticalAgentTypes []string                   `yaml:"critical_agent_types"`
	BudgetPools        map[string]float64         `yaml:"budget_pools"`
	AgentTypes         map[string]AgentTypePolicy `yaml:"agent_types"`
	Templates          map[string]TemplatePolicy  `yaml:"templates"`
}

// Load reads and validates a policy file. Unknown fields are an error: a
// typo in a governance policy must fail loudly, not silently default.
func Load(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	defer f.Close() //nolint:errcheck

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var p Policy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks internal consistency of the policy.
func (p *Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("version is required")
	}
	if p.PrivilegedRole == "" {
		return fmt.Errorf("privileged_role is required")
	}
	if p.ReserveRatio < 0 || p.ReserveRatio >= 1 {
		return fmt.Errorf("reserve_ratio must be in [0, 1), got %v", p.ReserveRatio)
	}
	for name, at := range p.AgentTypes {
		if at.MaxPopulation <= 0 {
			return fmt.Errorf("agent_types.%s: max_population must be positive", name)
		}
		if at.CreationCost < 0 {
			return fmt.Errorf("agent_types.%s: creation_cost must not be negative", name)
		}
	}
	for name, t := range p.Templates {
		if t.ContentHash == "" {
			return fmt.Errorf("templates.%s: content_hash is required", name)
		}
		if _, ok := p.AgentTypes[t.AgentType]; !ok {
			return fmt.Errorf("templates.%s: unknown agent_type %q", name, t.AgentType)
		}
	}
	return nil
}

// critical reports whether an agent type is critical, combining the per-type
// flag with the top-level critical_agent_types list.
func (p *Policy) critical(agentType string) bool {
	if p.AgentTypes[agentType].Critical {
		return true
	}
	for _, t := range p.CriticalAgentTypes {
		if t == agentType {
			return true
		}
	}
	return false
}

// Profiles converts the agent type sections into catalog profiles.
func (p *Policy) Profiles() []*catalog.AgentTypeProfile {
	out := make([]*catalog.AgentTypeProfile, 0, len(p.AgentTypes))
	for name, at := range p.AgentTypes {
		out = append(out, &catalog.AgentTypeProfile{
			AgentType:        name,
			MaxNetworkAccess: at.MaxNetworkAccess,
			MaxAutonomy:      at.MaxAutonomy,
			BaseRiskTier:     at.BaseRiskTier,
			Critical:         p.critical(name),
			CreationCost:     at.CreationCost,
		})
	}
	return out
}

// StaticTemplates converts the template sections into catalog definitions.
func (p *Policy) StaticTemplates() []*catalog.TemplateDefinition {
	out := make([]*catalog.TemplateDefinition, 0, len(p.Templates))
	for name, t := range p.Templates {
		out = append(out, &catalog.TemplateDefinition{
			Name:         name,
			ContentHash:  t.ContentHash,
			AgentType:    t.AgentType,
			Description:  t.Description,
			ConfigSchema: t.ConfigSchema,
		})
	}
	return out
}

// ConstraintDefaultTable builds the resolver's per-agent-type default table.
func (p *Policy) ConstraintDefaultTable() map[string]constraints.Constraints {
	out := make(map[string]constraints.Constraints, len(p.AgentTypes))
	for name, at := range p.AgentTypes {
		c := at.Constraints
		out[name] = constraints.Constraints{
			BudgetPerTask:     c.BudgetPerTask,
			BudgetPerDay:      c.BudgetPerDay,
			NetworkScopes:     c.NetworkScopes,
			AllowedTools:      c.AllowedTools,
			AllowedConnectors: c.AllowedConnectors,
			MaxParallelTasks:  c.MaxParallelTasks,
			Runtime: constraints.RuntimeCaps{
				AllowedModels:  c.Runtime.AllowedModels,
				MaxTokens:      c.Runtime.MaxTokens,
				MaxTemperature: c.Runtime.MaxTemperature,
			},
			RequiresHumanActivation: c.RequiresHumanActivation || p.critical(name),
			LockedFields:            c.LockedFields,
		}
	}
	return out
}

// MemoryLedgerConfig builds the in-memory ledger configuration.
func (p *Policy) MemoryLedgerConfig() ledger.MemoryConfig {
	cfg := ledger.MemoryConfig{
		ReserveRatio: p.ReserveRatio,
		Pools:        make(map[string]float64, len(p.BudgetPools)),
		Populations:  make(map[string]ledger.PopulationLimit, len(p.AgentTypes)),
	}
	for id, available := range p.BudgetPools {
		cfg.Pools[id] = available
	}
	for name, at := range p.AgentTypes {
		cfg.Populations[name] = ledger.PopulationLimit{Max: at.MaxPopulation}
	}
	return cfg
}
