package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"fintrack/internal/events"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// handleMessage runs handler for one message and reports whether the
// offset may be committed. Malformed messages are committed so they are
// not fetched again.
func handleMessage(ctx context.Context, msg kafka.Message, handler events.Handler) bool {
	e, err := events.LedgerEventFromJSON(msg.Value)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message",
			"error", err,
			"partition", msg.Partition,
			"offset", msg.Offset)
		return true
	}

	if err := handler(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"message_id", e.MessageID,
			"entry_id", e.EntryID)
		return false
	}
	return true
}

// ConsumeLedgerEvents blocks delivering ledger events to handler until ctx
// is done.
func (c *Consumer) ConsumeLedgerEvents(ctx context.Context, handler events.Handler) error {
	cfg := c.reader.Config()
	slog.InfoContext(ctx, "Started consuming ledger events", "topic", cfg.Topic, "group_id", cfg.GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.InfoContext(ctx, "Stopping message consumption", "reason", err)
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if !handleMessage(ctx, msg, handler) {
			// Left uncommitted; the periodic full sync repairs the mirror.
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit kafka message: %w", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
