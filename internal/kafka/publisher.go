package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"fintrack/internal/events"
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// PublishLedgerEvent implements events.Publisher
func (p *Publisher) PublishLedgerEvent(ctx context.Context, e *events.LedgerEvent) error {
	msg, err := toMessage(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	slog.InfoContext(ctx, "Published ledger event",
		"message_id", e.MessageID,
		"operation", e.Operation,
		"entry_id", e.EntryID,
		"topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// toMessage keys the message by entry id so events for one entry stay on
// one partition.
func toMessage(e *events.LedgerEvent) (kafka.Message, error) {
	data, err := e.ToJSON()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(e.EntryID, 10)),
		Value: data,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(e.MessageID)},
			{Key: "operation", Value: []byte(e.Operation)},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
