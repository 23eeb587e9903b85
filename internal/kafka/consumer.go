package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-analytics/internal/logger"
	"ms-analytics/internal/models"
)

// Consumer reads payment events for one topic and hands them to the
// registered handler.
type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// Start consumes messages until the context is cancelled. Malformed
// messages are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(models.PaymentEvent)) {
	topic := c.reader.Config().Topic
	if c.logger != nil {
		c.logger.LogKafka("START", topic, "consumer running")
	}

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if c.logger != nil {
				c.logger.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", topic, err))
			}
			continue
		}

		var event models.PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			if c.logger != nil {
				c.logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal payment event: %v", err))
			}
			continue
		}

		if c.logger != nil {
			c.logger.LogKafka("RECEIVE", topic, fmt.Sprintf("purchase=%s status=%s", event.PurchaseID, event.Status))
		}
		handler(event)
	}
}

// Close gracefully shuts down the Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
