package backend

import (
	"context"

	"fintrack/internal/events"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StorageResult contains the ledger KV store and its cleanup function
type StorageResult struct {
	KV      storage.KV
	Cleanup CleanupFunc
}

// EventSource delivers ledger events to a handler until ctx is done
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler events.Handler) error
	Close() error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateStorage(ctx context.Context, config Config) (*StorageResult, error)
	CreatePublisher(ctx context.Context, config Config) (events.Publisher, error)
	CreateEventSource(ctx context.Context, config Config) (EventSource, error)
	CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error)
}

// BackendType represents the type of storage backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	FileBackend     BackendType = "file"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// EventsType selects the event transport
type EventsType string

const (
	NoEvents    EventsType = "none"
	AMQPEvents  EventsType = "amqp"
	KafkaEvents EventsType = "kafka"
)

// IsValid returns true if the events type is valid
func (et EventsType) IsValid() bool {
	switch et {
	case NoEvents, AMQPEvents, KafkaEvents:
		return true
	default:
		return false
	}
}
