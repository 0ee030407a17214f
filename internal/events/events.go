// Package events defines the notification emitted after every ledger
// mutation and the publisher port the transports implement.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation names the ledger mutation that produced an event.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// LedgerEvent is a lightweight message: consumers re-read the ledger
// rather than trusting a payload copy.
type LedgerEvent struct {
	MessageID string    `json:"message_id"`
	Operation Operation `json:"operation"`
	EntryID   int64     `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps a new event with a random id and the current time.
func NewLedgerEvent(op Operation, entryID int64) *LedgerEvent {
	return &LedgerEvent{
		MessageID: uuid.NewString(),
		Operation: op,
		EntryID:   entryID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Operation {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return nil, fmt.Errorf("unknown operation %q", e.Operation)
	}
	return &e, nil
}

// Publisher delivers ledger events to a transport.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, e *LedgerEvent) error
	Close() error
}

// Handler processes one consumed event. Returning an error asks the
// transport to redeliver.
type Handler func(ctx context.Context, e *LedgerEvent) error

// Nop discards every event.
type Nop struct{}

func (Nop) PublishLedgerEvent(context.Context, *LedgerEvent) error { return nil }
func (Nop) Close() error                                           { return nil }

var _ Publisher = Nop{}
