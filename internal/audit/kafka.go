package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic is the audit topic to write to.
	Topic string

	// WriteTimeout is the per-attempt timeout for Write operations.
	// Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// KafkaSink publishes audit events to the platform message bus. Messages are
// keyed by decision ID so one decision's events land on one partition and
// keep their causal order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink constructs a KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		// Async=false so WriteMessages returns only after the message was
		// acknowledged by the writer pipeline.
		Async: false,
	})

	return &KafkaSink{writer: w}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, ev *Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("Write: marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.DecisionID),
		Value: value,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
