package catalog

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// TemplateDefinition is a named, content-hashed baseline configuration that
// candidate agent configs derive from.
type TemplateDefinition struct {
	ID          string
	Name        string
	ContentHash string
	AgentType   string
	Description string

	// ConfigSchema is an optional JSON Schema constraining the candidate
	// config's metadata extension map.
	ConfigSchema map[string]any

	compiled *jsonschema.Schema
}

// ValidateMetadata checks a candidate config's metadata map against the
// template's schema. A template without a schema accepts anything.
func (td *TemplateDefinition) ValidateMetadata(meta map[string]any) error {
	if td.compiled == nil {
		return nil
	}
	v := meta
	if v == nil {
		v = map[string]any{}
	}
	if err := td.compiled.Validate(normalizeJSON(v)); err != nil {
		return fmt.Errorf("ValidateMetadata: %w", err)
	}
	return nil
}

// AgentTypeProfile is the static per-agent-type metadata the rules consult:
// capability ceilings, criticality, base risk tier and creation cost.
type AgentTypeProfile struct {
	AgentType        string
	MaxNetworkAccess string
	MaxAutonomy      string
	BaseRiskTier     string
	Critical         bool
	CreationCost     float64
	Description      string
}
