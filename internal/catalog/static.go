package catalog

import (
	"context"
	"fmt"
)

// StaticCatalog serves templates and profiles from an in-memory table,
// typically loaded from the policy file. Used in development and tests.
type StaticCatalog struct {
	templates map[string]*TemplateDefinition
	profiles  map[string]*AgentTypeProfile
}

// NewStaticCatalog builds a StaticCatalog, compiling each template's schema.
func NewStaticCatalog(templates []*TemplateDefinition, profiles []*AgentTypeProfile) (*StaticCatalog, error) {
	c := &StaticCatalog{
		templates: make(map[string]*TemplateDefinition, len(templates)),
		profiles:  make(map[string]*AgentTypeProfile, len(profiles)),
	}
	for _, td := range templates {
		if td.ConfigSchema != nil {
			sch, err := compileSchema(td.ConfigSchema)
			if err != nil {
				return nil, fmt.Errorf("NewStaticCatalog: template %q: %w", td.Name, err)
			}
			td.compiled = sch
		}
		c.templates[td.Name] = td
	}
	for _, p := range profiles {
		c.profiles[p.AgentType] = p
	}
	return c, nil
}

func (c *StaticCatalog) GetTemplate(_ context.Context, name string) (*TemplateDefinition, error) {
	return c.templates[name], nil
}

func (c *StaticCatalog) GetProfile(_ context.Context, agentType string) (*AgentTypeProfile, error) {
	return c.profiles[agentType], nil
}
