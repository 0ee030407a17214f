package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/events"
)

// Client publishes and consumes ledger events over one channel. The queue
// is bound to a durable direct exchange with its own name as routing key.
type Client struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	queue    string
}

// NewClient dials url and declares the exchange, queue and binding.
func NewClient(url, exchange, queue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, exchange: exchange, queue: queue}
	if err := c.declareTopology(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) declareTopology() error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := c.channel.ExchangeDeclare(c.exchange, amqp091.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", c.exchange, err)
	}
	if _, err := c.channel.QueueDeclare(c.queue, durable, autoDelete, exclusive, noWait, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.queue, err)
	}
	if err := c.channel.QueueBind(c.queue, c.queue, c.exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", c.queue, err)
	}
	return nil
}

// PublishLedgerEvent implements events.Publisher
func (c *Client) PublishLedgerEvent(ctx context.Context, e *events.LedgerEvent) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.MessageID,
		Timestamp:    e.Timestamp,
		Type:         string(e.Operation),
		Body:         body,
	}
	if err := c.channel.PublishWithContext(ctx, c.exchange, c.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish ledger event %s: %w", e.MessageID, err)
	}

	slog.DebugContext(ctx, "Published ledger event",
		"message_id", e.MessageID,
		"operation", e.Operation,
		"entry_id", e.EntryID,
		"exchange", c.exchange)

	return nil
}

// deliveryAction is what to do with a delivery once handled.
type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionDrop
	actionRequeue
)

// handleDelivery decodes body and runs handler. Malformed messages are
// dropped; handler failures are requeued.
func handleDelivery(ctx context.Context, body []byte, handler events.Handler) deliveryAction {
	msg, err := events.LedgerEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		return actionDrop
	}

	slog.InfoContext(ctx, "Processing ledger event",
		"message_id", msg.MessageID,
		"operation", msg.Operation,
		"entry_id", msg.EntryID)

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"message_id", msg.MessageID,
			"entry_id", msg.EntryID)
		return actionRequeue
	}
	return actionAck
}

// ConsumeLedgerEvents blocks delivering ledger events to handler until ctx
// is done or the channel closes.
func (c *Client) ConsumeLedgerEvents(ctx context.Context, handler events.Handler) error {
	const autoAck, exclusive, noLocal, noWait = false, false, false, false
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", autoAck, exclusive, noLocal, noWait, nil)
	if err != nil {
		return fmt.Errorf("consume %q: %w", c.queue, err)
	}

	slog.InfoContext(ctx, "Consuming ledger events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}

			var ackErr error
			switch handleDelivery(ctx, d.Body, handler) {
			case actionDrop:
				ackErr = d.Nack(false, false)
			case actionRequeue:
				ackErr = d.Nack(false, true)
			default:
				ackErr = d.Ack(false)
			}
			if ackErr != nil {
				slog.WarnContext(ctx, "Failed to settle delivery", "error", ackErr, "message_id", d.MessageId)
			}
		}
	}
}

// Close closes the channel and the connection.
func (c *Client) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

var _ events.Publisher = (*Client)(nil)
