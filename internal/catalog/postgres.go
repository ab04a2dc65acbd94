package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TemplateStore abstracts DB queries for testability.
type TemplateStore interface {
	LookupTemplate(ctx context.Context, name string) (*templateRow, error)
	LookupProfile(ctx context.Context, agentType string) (*profileRow, error)
}

type templateRow struct {
	ID           string
	Name         string
	ContentHash  string
	AgentType    string
	Description  sql.NullString
	ConfigSchema sql.NullString // JSONB as string
}

type profileRow struct {
	AgentType        string
	MaxNetworkAccess string
	MaxAutonomy      string
	BaseRiskTier     string
	Critical         bool
	CreationCost     float64
	Description      sql.NullString
}

// sqlTemplateStore is the real implementation using *sql.DB.
type sqlTemplateStore struct {
	db *sql.DB
}

func (s *sqlTemplateStore) LookupTemplate(ctx context.Context, name string) (*templateRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, content_hash, agent_type, description, config_schema
		FROM agent_templates
		WHERE name = $1
	`, name)

	var r templateRow
	if err := row.Scan(&r.ID, &r.Name, &r.ContentHash, &r.AgentType, &r.Description, &r.ConfigSchema); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlTemplateStore) LookupProfile(ctx context.Context, agentType string) (*profileRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_type, max_network_access, max_autonomy, base_risk_tier,
		       critical, creation_cost, description
		FROM agent_type_profiles
		WHERE agent_type = $1
	`, agentType)

	var r profileRow
	if err := row.Scan(&r.AgentType, &r.MaxNetworkAccess, &r.MaxAutonomy,
		&r.BaseRiskTier, &r.Critical, &r.CreationCost, &r.Description); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresCatalog fetches templates and profiles from the agent_templates and
// agent_type_profiles tables, with stale-while-revalidate caching.
type PostgresCatalog struct {
	store     TemplateStore
	templates *ttlCache[TemplateDefinition]
	profiles  *ttlCache[AgentTypeProfile]
	logger    *zap.Logger
}

// PostgresCatalogConfig configures the PostgresCatalog.
type PostgresCatalogConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresCatalog creates a new PostgresCatalog.
func NewPostgresCatalog(cfg PostgresCatalogConfig) *PostgresCatalog {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &PostgresCatalog{
		store:     &sqlTemplateStore{db: cfg.DB},
		templates: newTTLCache[TemplateDefinition](ttl),
		profiles:  newTTLCache[AgentTypeProfile](ttl),
		logger:    cfg.Logger,
	}
}

// newPostgresCatalogWithStore creates a catalog with a custom store (for testing).
func newPostgresCatalogWithStore(store TemplateStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresCatalog {
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	return &PostgresCatalog{
		store:     store,
		templates: newTTLCache[TemplateDefinition](cacheTTL),
		profiles:  newTTLCache[AgentTypeProfile](cacheTTL),
		logger:    logger,
	}
}

func (c *PostgresCatalog) GetTemplate(ctx context.Context, name string) (*TemplateDefinition, error) {
	cached := c.templates.Get(name)
	if cached.Hit {
		if cached.NeedsRefresh {
			go c.refreshTemplate(name)
		}
		return cached.Value, nil
	}

	td, err := c.fetchTemplate(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.templates.Set(name, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("GetTemplate: %w", err)
	}

	c.templates.Set(name, td)
	return td, nil
}

func (c *PostgresCatalog) GetProfile(ctx context.Context, agentType string) (*AgentTypeProfile, error) {
	cached := c.profiles.Get(agentType)
	if cached.Hit {
		if cached.NeedsRefresh {
			go c.refreshProfile(agentType)
		}
		return cached.Value, nil
	}

	p, err := c.fetchProfile(ctx, agentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.profiles.Set(agentType, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("GetProfile: %w", err)
	}

	c.profiles.Set(agentType, p)
	return p, nil
}

func (c *PostgresCatalog) fetchTemplate(ctx context.Context, name string) (*TemplateDefinition, error) {
	row, err := c.store.LookupTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	return parseTemplateRow(row)
}

func (c *PostgresCatalog) fetchProfile(ctx context.Context, agentType string) (*AgentTypeProfile, error) {
	row, err := c.store.LookupProfile(ctx, agentType)
	if err != nil {
		return nil, err
	}
	p := &AgentTypeProfile{
		AgentType:        row.AgentType,
		MaxNetworkAccess: row.MaxNetworkAccess,
		MaxAutonomy:      row.MaxAutonomy,
		BaseRiskTier:     row.BaseRiskTier,
		Critical:         row.Critical,
		CreationCost:     row.CreationCost,
	}
	if row.Description.Valid {
		p.Description = row.Description.String
	}
	return p, nil
}

func (c *PostgresCatalog) refreshTemplate(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	td, err := c.fetchTemplate(ctx, name)
	if err != nil {
		c.logger.Warn("background template refresh failed",
			zap.String("template", name),
			zap.Error(err),
		)
		// Drop the entry so the next lookup retries; keeping it would pin
		// the stale value behind a refreshing flag that never resets.
		c.templates.Delete(name)
		return
	}
	c.templates.Set(name, td)
}

func (c *PostgresCatalog) refreshProfile(agentType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := c.fetchProfile(ctx, agentType)
	if err != nil {
		c.logger.Warn("background profile refresh failed",
			zap.String("agent_type", agentType),
			zap.Error(err),
		)
		c.profiles.Delete(agentType)
		return
	}
	c.profiles.Set(agentType, p)
}

func parseTemplateRow(row *templateRow) (*TemplateDefinition, error) {
	td := &TemplateDefinition{
		ID:          row.ID,
		Name:        row.Name,
		ContentHash: row.ContentHash,
		AgentType:   row.AgentType,
	}
	if row.Description.Valid {
		td.Description = row.Description.String
	}

	if row.ConfigSchema.Valid && row.ConfigSchema.String != "" && row.ConfigSchema.String != "{}" {
		var schema map[string]any
		if err := json.Unmarshal([]byte(row.ConfigSchema.String), &schema); err != nil {
			return nil, fmt.Errorf("parseTemplateRow: config_schema: %w", err)
		}
		td.ConfigSchema = schema

		compiled, err := compileSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("parseTemplateRow: %w", err)
		}
		td.compiled = compiled
	}

	return td, nil
}
