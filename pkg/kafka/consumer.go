package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. A returned error is logged; the offset is
// committed regardless so a poisoned event does not stall the group.
type Handler func(ctx context.Context, msg kafkago.Message) error

// Consumer wraps a kafka-go group Reader.
type Consumer struct {
	reader *kafkago.Reader
	logger *zap.Logger
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	MaxWait time.Duration
}

// NewConsumer constructs a Consumer from the given configuration.
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  cfg.MaxWait,
		}),
		logger: logger,
	}
}

// Run fetches messages one at a time until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := handle(ctx, msg); err != nil {
			c.logger.Error("event handling failed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// Close releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
