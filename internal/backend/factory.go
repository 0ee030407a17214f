package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"fintrack/internal/amqp"
	"fintrack/internal/events"
	"fintrack/internal/kafka"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
)

// ErrMirrorNotConfigured is returned by CreateMirror without a spreadsheet id
var ErrMirrorNotConfigured = errors.New("ledger mirror needs GOOGLE_SPREADSHEET_ID")

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateStorage implements Factory.CreateStorage
func (f *DefaultFactory) CreateStorage(ctx context.Context, config Config) (*StorageResult, error) {
	var (
		kv  storage.KV
		err error
	)

	switch config.Type {
	case MemoryBackend:
		kv = storage.NewMemoryKV()
		f.logger.WarnContext(ctx, "Using in-memory ledger storage, data is lost on restart")
	case FileBackend:
		kv, err = storage.NewFileKV(config.DataDirectory)
	case SQLiteBackend:
		kv, err = storage.NewSQLiteKV(config.SQLiteDBPath)
	case PostgresBackend:
		kv, err = storage.NewPostgresKV(config.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s storage: %w", config.Type, err)
	}

	f.logger.InfoContext(ctx, "Initialized ledger storage", "backend", config.Type, "location", storageLocation(config))

	return &StorageResult{
		KV:      kv,
		Cleanup: kv.Close,
	}, nil
}

func storageLocation(config Config) string {
	switch config.Type {
	case FileBackend:
		return filepath.Clean(config.DataDirectory)
	case SQLiteBackend:
		return config.SQLiteDBPath
	case PostgresBackend:
		return "postgres"
	default:
		return "memory"
	}
}

// CreatePublisher implements Factory.CreatePublisher. An unreachable AMQP
// broker degrades to no events rather than failing startup.
func (f *DefaultFactory) CreatePublisher(ctx context.Context, config Config) (events.Publisher, error) {
	switch config.Events {
	case NoEvents, "":
		return events.Nop{}, nil
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
			return events.Nop{}, nil
		}
		f.logger.InfoContext(ctx, "Initialized AMQP publisher",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return client, nil
	case KafkaEvents:
		f.logger.InfoContext(ctx, "Initialized Kafka publisher", "brokers", config.KafkaBrokers, "topic", config.KafkaTopic)
		return kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unsupported events type: %s", config.Events)
	}
}

// CreateEventSource implements Factory.CreateEventSource
func (f *DefaultFactory) CreateEventSource(ctx context.Context, config Config) (EventSource, error) {
	switch config.Events {
	case AMQPEvents:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("initialize AMQP consumer: %w", err)
		}
		return client, nil
	case KafkaEvents:
		if config.KafkaGroupID == "" {
			return nil, errors.New("Kafka group id is required to consume events")
		}
		return kafka.NewConsumer(config.KafkaBrokers, config.KafkaTopic, config.KafkaGroupID), nil
	default:
		return nil, fmt.Errorf("events type %q cannot be consumed", config.Events)
	}
}

// CreateMirror implements Factory.CreateMirror. A spreadsheet id is
// required: a mirror nobody can read would make the worker a no-op.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error) {
	if config.GoogleSpreadsheetID == "" {
		return nil, ErrMirrorNotConfigured
	}

	client, err := gsheet.NewClient(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, gsheet.Credentials{
		JSON: config.GoogleServiceAccountJSON,
		File: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets mirror: %w", err)
	}
	f.logger.InfoContext(ctx, "Initialized Google Sheets mirror", "sheet", config.GoogleSheetName)
	return client, nil
}
