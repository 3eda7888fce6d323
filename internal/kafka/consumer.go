package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventStatusHandler reacts to one event lifecycle change.
type EventStatusHandler func(ctx context.Context, change models.EventStatusChange) error

type Consumer struct {
	reader MessageReader
	logger *logger.Logger
}

// NewConsumer reads topic as part of groupID.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, logger: log}
}

// Start consumes event status changes until ctx is done. Every message is
// committed after the handler ran, including malformed ones and those the
// handler failed on; the periodic pass picks up anything missed.
func (c *Consumer) Start(ctx context.Context, handler EventStatusHandler) error {
	c.logger.Info("KAFKA", "Event status consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("KAFKA", "Event status consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch event status message: %w", err)
		}

		var change models.EventStatusChange
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Discarding malformed message at offset %d: %v", msg.Offset, err))
		} else if change.EventID == "" {
			c.logger.Warn("KAFKA", fmt.Sprintf("Discarding message without event_id at offset %d", msg.Offset))
		} else {
			c.logger.LogKafka("CONSUME", msg.Topic, fmt.Sprintf("event %s is now %s", change.EventID, change.Status))
			if err := handler(ctx, change); err != nil {
				c.logger.Error("KAFKA", fmt.Sprintf("Handling status change for event %s: %v", change.EventID, err))
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Commit offset %d: %v", msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
