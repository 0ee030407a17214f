package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour behind SQLKV.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	// Both registered driver names match the dialect names.
	return string(d)
}

type sqlQueries struct {
	get string
	set string
}

var queriesByDialect = map[Dialect]sqlQueries{
	DialectSQLite: {
		get: `SELECT value FROM kv_store WHERE key = ?`,
		set: `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	},
	DialectPostgres: {
		get: `SELECT value FROM kv_store WHERE key = $1`,
		set: `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
	},
}

// SQLKV keeps values in a kv_store table.
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
	queries sqlQueries
}

// NewSQLiteKV opens (creating if needed) the SQLite database at dbPath and
// migrates it.
func NewSQLiteKV(dbPath string) (*SQLKV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return openSQLKV(DialectSQLite, dbPath)
}

// NewPostgresKV connects to dsn and migrates the schema.
func NewPostgresKV(dsn string) (*SQLKV, error) {
	return openSQLKV(DialectPostgres, dsn)
}

func openSQLKV(d Dialect, dsn string) (*SQLKV, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if d == DialectSQLite {
		// One writer at a time; avoids SQLITE_BUSY on concurrent Set.
		db.SetMaxOpenConns(1)
	}

	// Run migrations
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLKV{db: db, dialect: d, queries: queriesByDialect[d]}, nil
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.queries.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.queries.set, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	slog.DebugContext(ctx, "Value stored", "dialect", s.dialect, "key", key, "bytes", len(value))
	return nil
}

func (s *SQLKV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ KV = (*SQLKV)(nil)
