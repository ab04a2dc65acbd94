// Package chread provides read access to the ClickHouse audit event table
// for decision queries and analytics.
package chread

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the gatehouse_audit_events table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// EventRow represents a single row from the gatehouse_audit_events table.
type EventRow struct {
	DecisionID  string
	Sequence    uint64
	EventType   string
	Timestamp   time.Time
	PayloadJSON string
}

// ListEventsParams holds filters and pagination for event listing.
type ListEventsParams struct {
	EventType *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ListEvents returns paginated, filtered audit events and the total count.
func (r *Reader) ListEvents(ctx context.Context, params ListEventsParams) ([]EventRow, int, error) {
	conditions := []string{"1 = 1"}
	var args []any

	if params.EventType != nil {
		conditions = append(conditions, "event_type = @event_type")
		args = append(args, clickhouse.Named("event_type", *params.EventType))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "timestamp >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "timestamp <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM gatehouse_audit_events WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEvents count: %w", err)
	}

	dataQuery := fmt.Sprintf(
		"SELECT decision_id, sequence, event_type, timestamp, payload "+
			"FROM gatehouse_audit_events WHERE %s "+
			"ORDER BY timestamp DESC, sequence DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEvents query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.DecisionID, &e.Sequence, &e.EventType, &e.Timestamp, &e.PayloadJSON); err != nil {
			return nil, 0, fmt.Errorf("ListEvents scan: %w", err)
		}
		events = append(events, e)
	}

	return events, int(total), rows.Err()
}

// GetDecision returns all events for a decision in sequence order, or an
// empty slice if the decision is unknown.
func (r *Reader) GetDecision(ctx context.Context, decisionID string) ([]EventRow, error) {
	rows, err := r.conn.Query(ctx,
		"SELECT decision_id, sequence, event_type, timestamp, payload "+
			"FROM gatehouse_audit_events "+
			"WHERE decision_id = @decision_id "+
			"ORDER BY sequence ASC",
		clickhouse.Named("decision_id", decisionID),
	)
	if err != nil {
		return nil, fmt.Errorf("GetDecision: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.DecisionID, &e.Sequence, &e.EventType, &e.Timestamp, &e.PayloadJSON); err != nil {
			return nil, fmt.Errorf("GetDecision scan: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
