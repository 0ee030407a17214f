package amqp

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"fintrack/internal/events"
)

func TestHandleDelivery(t *testing.T) {
	valid, err := events.NewLedgerEvent(events.OpUpdate, 4).ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tests := []struct {
		name     string
		body     []byte
		handler  events.Handler
		expected deliveryAction
	}{
		{
			name:     "malformed body is dropped",
			body:     []byte(`{"operation":`),
			handler:  func(context.Context, *events.LedgerEvent) error { return nil },
			expected: actionDrop,
		},
		{
			name:     "unknown operation is dropped",
			body:     []byte(`{"operation":"merge","entry_id":1}`),
			handler:  func(context.Context, *events.LedgerEvent) error { return nil },
			expected: actionDrop,
		},
		{
			name:     "handler failure is requeued",
			body:     valid,
			handler:  func(context.Context, *events.LedgerEvent) error { return errors.New("sheets down") },
			expected: actionRequeue,
		},
		{
			name:     "success is acked",
			body:     valid,
			handler:  func(context.Context, *events.LedgerEvent) error { return nil },
			expected: actionAck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleDelivery(context.Background(), tt.body, tt.handler)
			if got != tt.expected {
				t.Errorf("handleDelivery() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHandleDeliveryPassesDecodedEvent(t *testing.T) {
	body, _ := events.NewLedgerEvent(events.OpDelete, 9).ToJSON()
	var seen *events.LedgerEvent
	handleDelivery(context.Background(), body, func(_ context.Context, e *events.LedgerEvent) error {
		seen = e
		return nil
	})
	if seen == nil || seen.Operation != events.OpDelete || seen.EntryID != 9 {
		t.Fatalf("handler saw %+v", seen)
	}
}

func TestClientRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	client, err := NewClient(url, "fintrack_test", "fintrack_test_events")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := events.NewLedgerEvent(events.OpCreate, 1)
	if err := client.PublishLedgerEvent(ctx, sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := make(chan *events.LedgerEvent, 1)
	go func() {
		_ = client.ConsumeLedgerEvents(ctx, func(_ context.Context, e *events.LedgerEvent) error {
			if e.MessageID == sent.MessageID {
				got <- e
			}
			return nil
		})
	}()

	select {
	case e := <-got:
		if e.EntryID != 1 {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event")
	}
}
