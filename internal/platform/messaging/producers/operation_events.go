package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/virtual-currency-ledger/internal/config"
)

// OperationEventProducer publishes ledger operation lifecycle events.
// Events are observational: the engine fires them after commit, the
// balance projector consumes them as refresh triggers, and a publish
// failure never affects the committed operation.
type OperationEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewOperationEventProducer creates the producer and ensures the topic exists
func NewOperationEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*OperationEventProducer, error) {
	if cfg.OperationsTopic == "" {
		return nil, fmt.Errorf("kafka operations topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for operation event producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.OperationsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure operations topic %s exists: %w", cfg.OperationsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.OperationsTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.OperationsTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.OperationsTopic, "count", len(messages))
			}
		},
	}

	return &OperationEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.OperationsTopic,
	}, nil
}

func (p *OperationEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal operation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish operation event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish operation event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published operation event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *OperationEventProducer) Close() error {
	p.logger.Info("Closing operation event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
