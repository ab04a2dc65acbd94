package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresLedger is a Ledger backed by the budget_pools, agent_populations
// and creation_reservations tables. Reserve runs both checks and both updates
// in one transaction with row locks, giving the compare-and-take semantics
// the MemoryLedger gets from its mutex.
type PostgresLedger struct {
	db           *sql.DB
	reserveRatio float64
	logger       *zap.Logger
}

// PostgresLedgerConfig configures a PostgresLedger.
type PostgresLedgerConfig struct {
	DB           *sql.DB
	ReserveRatio float64
	Logger       *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger.
func NewPostgresLedger(cfg PostgresLedgerConfig) *PostgresLedger {
	return &PostgresLedger{
		db:           cfg.DB,
		reserveRatio: cfg.ReserveRatio,
		logger:       cfg.Logger,
	}
}

func (l *PostgresLedger) Reserve(ctx context.Context, pool, agentType string, cost float64) (*Reservation, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var available float64
	err = tx.QueryRowContext(ctx, `
		SELECT available FROM budget_pools
		WHERE pool_id = $1
		FOR UPDATE
	`, pool).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownPool
	}
	if err != nil {
		return nil, fmt.Errorf("Reserve: budget pool: %w", err)
	}

	usable := available * (1 - l.reserveRatio)
	if cost > usable {
		return nil, ErrBudgetInsufficient
	}

	var live, max int
	err = tx.QueryRowContext(ctx, `
		SELECT live_count, max_count FROM agent_populations
		WHERE agent_type = $1
		FOR UPDATE
	`, agentType).Scan(&live, &max)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownAgentType
	}
	if err != nil {
		return nil, fmt.Errorf("Reserve: population: %w", err)
	}

	if live >= max {
		return nil, ErrPopulationLimit
	}

	res := &Reservation{
		ID:        uuid.New().String(),
		Pool:      pool,
		AgentType: agentType,
		Cost:      cost,
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE budget_pools SET available = available - $1 WHERE pool_id = $2
	`, cost, pool); err != nil {
		return nil, fmt.Errorf("Reserve: debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_populations SET live_count = live_count + 1 WHERE agent_type = $1
	`, agentType); err != nil {
		return nil, fmt.Errorf("Reserve: increment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO creation_reservations (id, pool_id, agent_type, cost, state)
		VALUES ($1, $2, $3, $4, 'held')
	`, res.ID, pool, agentType, cost); err != nil {
		return nil, fmt.Errorf("Reserve: record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Reserve: commit: %w", err)
	}
	return res, nil
}

func (l *PostgresLedger) Commit(ctx context.Context, res *Reservation) error {
	result, err := l.db.ExecContext(ctx, `
		UPDATE creation_reservations SET state = 'committed'
		WHERE id = $1 AND state = 'held'
	`, res.ID)
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		l.logger.Warn("commit of unknown or finalized reservation",
			zap.String("reservation_id", res.ID),
		)
	}
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, res *Reservation) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `
		UPDATE creation_reservations SET state = 'released'
		WHERE id = $1 AND state = 'held'
	`, res.ID)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	if n == 0 {
		// Already committed or released; nothing to return.
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE budget_pools SET available = available + $1 WHERE pool_id = $2
	`, res.Cost, res.Pool); err != nil {
		return fmt.Errorf("Release: credit: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_populations SET live_count = GREATEST(live_count - 1, 0)
		WHERE agent_type = $1
	`, res.AgentType); err != nil {
		return fmt.Errorf("Release: decrement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Release: commit: %w", err)
	}
	return nil
}
