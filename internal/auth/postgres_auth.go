package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CallerStore abstracts DB queries for testability.
type CallerStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*callerRow, error)
}

type callerRow struct {
	CallerID   string
	APIKeyHash string
	Subsystem  string
}

// sqlCallerStore is the real implementation using *sql.DB.
type sqlCallerStore struct {
	db *sql.DB
}

func (s *sqlCallerStore) LookupByPrefix(ctx context.Context, prefix string) (*callerRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, api_key_hash, subsystem
		FROM governed_callers
		WHERE api_key_prefix = $1
	`, prefix)

	var r callerRow
	if err := row.Scan(&r.CallerID, &r.APIKeyHash, &r.Subsystem); err != nil {
		return nil, err
	}
	return &r, nil
}

// PostgresAuthenticator validates API keys against the governed_callers table.
type PostgresAuthenticator struct {
	store  CallerStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new PostgresAuthenticator.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlCallerStore{db: cfg.DB},
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// NewPostgresAuthenticatorWithStore creates an authenticator with a custom
// store (for testing).
func NewPostgresAuthenticatorWithStore(store CallerStore, cacheTTL time.Duration, logger *zap.Logger) *PostgresAuthenticator {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  store,
		cache:  NewAuthCache(cacheTTL),
		logger: logger,
	}
}

func (a *PostgresAuthenticator) Authenticate(ctx context.Context, token string) (*CallerContext, error) {
	cached := a.cache.Get(token)
	if cached.Hit {
		if cached.NeedsRefresh {
			go a.refreshInBackground(token)
		}
		return cached.Caller, nil
	}

	caller, err := a.authenticateFromDB(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("Authenticate: %w", err)
	}

	a.cache.Set(token, caller)
	return caller, nil
}

func (a *PostgresAuthenticator) authenticateFromDB(ctx context.Context, token string) (*CallerContext, error) {
	if len(token) < 8 {
		return nil, ErrUnauthenticated
	}
	prefix := token[:8]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("authenticateFromDB: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(token)); err != nil {
		return nil, ErrUnauthenticated
	}

	return &CallerContext{
		CallerID:  row.CallerID,
		Subsystem: row.Subsystem,
	}, nil
}

func (a *PostgresAuthenticator) refreshInBackground(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caller, err := a.authenticateFromDB(ctx, token)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(token)
		return
	}
	a.cache.Set(token, caller)
}
