// Package ledger owns the list of financial entries.
//
// The whole ledger lives under a single key of a storage.KV as a JSON array
// and every mutation rewrites that array. Callers never touch the KV
// directly; all changes go through Store so ids stay unique.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// DefaultKey is the storage key the ledger is persisted under.
const DefaultKey = "finance-tracker"

var (
	// ErrEntryNotFound is returned by Get and Update for an unknown id.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrCorruptLedger is returned by mutations when the persisted value
	// cannot be decoded. Reads treat such state as empty instead.
	ErrCorruptLedger = errors.New("persisted ledger is malformed")
)

type Store struct {
	mu  sync.Mutex
	kv  storage.KV
	key string
}

// New returns a Store persisting under key; an empty key means DefaultKey.
func New(kv storage.KV, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key}
}

// List returns the entries in insertion order. Absent or malformed state
// yields an empty ledger.
func (s *Store) List(ctx context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if errors.Is(err, ErrCorruptLedger) {
		slog.WarnContext(ctx, "Persisted ledger is malformed, treating as empty", "key", s.key, "error", err)
		return []core.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Load is List without the soft fallback: malformed state is returned as
// ErrCorruptLedger. Readers that copy the ledger elsewhere use it.
func (s *Store) Load(ctx context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id int64) (core.Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return core.Entry{}, err
	}
	if i := indexOf(entries, id); i >= 0 {
		return entries[i], nil
	}
	return core.Entry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
}

// Create appends a new entry with id max(ids)+1, or 1 on an empty ledger.
func (s *Store) Create(ctx context.Context, f core.EntryFields) (core.Entry, error) {
	if err := f.Validate(); err != nil {
		return core.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return core.Entry{}, err
	}

	e := core.Entry{ID: nextID(entries)}.WithFields(f)
	entries = append(entries, e)
	if err := s.save(ctx, entries); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

// Update replaces the fields of entry id, keeping its position.
func (s *Store) Update(ctx context.Context, id int64, f core.EntryFields) (core.Entry, error) {
	if err := f.Validate(); err != nil {
		return core.Entry{}, err
	}
	return s.Patch(ctx, id, func(core.EntryFields) (core.EntryFields, error) {
		return f, nil
	})
}

// MergeFunc derives new fields from an entry's current ones.
type MergeFunc func(current core.EntryFields) (core.EntryFields, error)

// Patch applies merge to entry id under the store lock, so concurrent
// patches never lose each other's fields.
func (s *Store) Patch(ctx context.Context, id int64, merge MergeFunc) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return core.Entry{}, err
	}

	i := indexOf(entries, id)
	if i < 0 {
		return core.Entry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	f, err := merge(entries[i].Fields())
	if err != nil {
		return core.Entry{}, err
	}
	if err := f.Validate(); err != nil {
		return core.Entry{}, err
	}
	entries[i] = entries[i].WithFields(f)
	if err := s.save(ctx, entries); err != nil {
		return core.Entry{}, err
	}
	return entries[i], nil
}

// Delete removes entry id. An unknown id is not an error and leaves the
// persisted state untouched. The returned bool reports whether anything
// was removed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	i := indexOf(entries, id)
	if i < 0 {
		return false, nil
	}
	entries = append(entries[:i], entries[i+1:]...)
	if err := s.save(ctx, entries); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) load(ctx context.Context) ([]core.Entry, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []core.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return decode(data)
}

func (s *Store) save(ctx context.Context, entries []core.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// decode parses a persisted ledger. A JSON null is an empty ledger;
// duplicate ids make the state malformed.
func decode(data []byte) ([]core.Entry, error) {
	var entries []core.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorruptLedger, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	return entries, nil
}

func nextID(entries []core.Entry) int64 {
	var max int64
	for _, e := range entries {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}

func indexOf(entries []core.Entry, id int64) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
