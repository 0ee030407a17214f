// Package storage provides the key-value media the ledger persists into.
//
// Every backend stores opaque byte values under string keys and replaces a
// value wholesale on Set; there are no partial or append-only writes.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// KV is a flat key-value store.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the underlying medium.
	Close() error
}
