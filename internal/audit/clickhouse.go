package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const insertEventQuery = `
	INSERT INTO gatehouse_audit_events (
		decision_id, sequence, event_type, timestamp, payload
	) VALUES (?, ?, ?, ?, ?)
`

// ClickHouseSink writes audit events to the gatehouse_audit_events table.
// Writes are acknowledged per event: the dual-write contract needs a real
// ack, so this sink uses server-side async inserts with wait enabled rather
// than client-side batching.
type ClickHouseSink struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseSink opens a ClickHouse connection and verifies it with a ping.
func NewClickHouseSink(dsn string, logger *zap.Logger) (*ClickHouseSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewClickHouseSink: %w", err)
	}

	return &ClickHouseSink{conn: conn, logger: logger}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("Write: payload: %w", err)
	}

	if err := s.conn.AsyncInsert(ctx, insertEventQuery, true,
		ev.DecisionID,
		ev.Sequence,
		string(ev.Type),
		ev.Timestamp,
		string(payload),
	); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
