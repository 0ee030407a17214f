package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Mirror holds the last replaced ledger in memory.
type Mirror struct {
	mu       sync.Mutex
	entries  []core.Entry
	replaces int
}

func New() *Mirror {
	return &Mirror{}
}

// Replace stores a copy of entries.
func (m *Mirror) Replace(_ context.Context, entries []core.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]core.Entry(nil), entries...)
	m.replaces++
	return nil
}

// Entries returns a copy of the mirrored entries.
func (m *Mirror) Entries() []core.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Entry(nil), m.entries...)
}

// Replaces reports how many times Replace was called.
func (m *Mirror) Replaces() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

var _ ports.LedgerMirror = (*Mirror)(nil)
