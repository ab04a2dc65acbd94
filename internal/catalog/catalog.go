package catalog

import "context"

// Catalog supplies template definitions and agent type profiles.
type Catalog interface {
	// GetTemplate returns the template by name, or nil if not registered.
	GetTemplate(ctx context.Context, name string) (*TemplateDefinition, error)

	// GetProfile returns the agent type profile, or nil if not registered.
	GetProfile(ctx context.Context, agentType string) (*AgentTypeProfile, error)
}
