package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/totals"
)

// ErrRatesUnavailable means the rate fetch failed and no previous totals
// for the requested currency exist.
var ErrRatesUnavailable = errors.New("exchange rates unavailable")

// RateFetcher returns the rates table for a display currency.
type RateFetcher interface {
	Fetch(ctx context.Context, display core.Currency) (core.RateTable, error)
}

// TotalsResult is a totals calculation. Stale is set when the rate fetch
// failed and the previous totals for the same currency were returned.
type TotalsResult struct {
	core.Totals
	Stale bool
}

// Tracker orchestrates ledger operations, event publishing and totals
type Tracker struct {
	ledger    *ledger.Store
	publisher events.Publisher
	rates     RateFetcher

	mu      sync.Mutex
	last    core.Totals
	hasLast bool
}

func NewTracker(store *ledger.Store, publisher events.Publisher, rates RateFetcher) *Tracker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Tracker{
		ledger:    store,
		publisher: publisher,
		rates:     rates,
	}
}

func (t *Tracker) Entries(ctx context.Context) ([]core.Entry, error) {
	return t.ledger.List(ctx)
}

func (t *Tracker) Entry(ctx context.Context, id int64) (core.Entry, error) {
	return t.ledger.Get(ctx, id)
}

// CreateEntry saves a new entry and publishes a create event
func (t *Tracker) CreateEntry(ctx context.Context, f core.EntryFields) (core.Entry, error) {
	e, err := t.ledger.Create(ctx, f)
	if err != nil {
		return core.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	t.publish(ctx, events.OpCreate, e.ID)
	return e, nil
}

// UpdateEntry replaces an entry's fields and publishes an update event
func (t *Tracker) UpdateEntry(ctx context.Context, id int64, f core.EntryFields) (core.Entry, error) {
	e, err := t.ledger.Update(ctx, id, f)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	t.publish(ctx, events.OpUpdate, e.ID)
	return e, nil
}

// PatchEntry merges new fields over an entry inside the ledger lock and
// publishes an update event
func (t *Tracker) PatchEntry(ctx context.Context, id int64, merge ledger.MergeFunc) (core.Entry, error) {
	e, err := t.ledger.Patch(ctx, id, merge)
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry: %w", err)
	}
	t.publish(ctx, events.OpUpdate, e.ID)
	return e, nil
}

// DeleteEntry removes an entry. Unknown ids are a no-op and publish nothing.
func (t *Tracker) DeleteEntry(ctx context.Context, id int64) error {
	removed, err := t.ledger.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if removed {
		t.publish(ctx, events.OpDelete, id)
	}
	return nil
}

// Totals converts the ledger into display currency using freshly fetched
// rates.
func (t *Tracker) Totals(ctx context.Context, display core.Currency) (TotalsResult, error) {
	if !display.IsSupported() {
		return TotalsResult{}, fmt.Errorf("%w: %q", core.ErrInvalidCurrency, display)
	}

	entries, err := t.ledger.List(ctx)
	if err != nil {
		return TotalsResult{}, fmt.Errorf("list entries: %w", err)
	}

	table, err := t.rates.Fetch(ctx, display)
	if err != nil {
		if prev, ok := t.previous(display); ok {
			slog.WarnContext(ctx, "Rate fetch failed, serving previous totals",
				"display_currency", display, "error", err)
			return TotalsResult{Totals: prev, Stale: true}, nil
		}
		return TotalsResult{}, fmt.Errorf("%w: %w", ErrRatesUnavailable, err)
	}

	result, err := totals.Calculate(entries, table, display)
	if err != nil {
		return TotalsResult{}, fmt.Errorf("calculate totals: %w", err)
	}

	t.mu.Lock()
	t.last, t.hasLast = result, true
	t.mu.Unlock()

	return TotalsResult{Totals: result}, nil
}

func (t *Tracker) previous(display core.Currency) (core.Totals, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLast || t.last.Currency != display {
		return core.Totals{}, false
	}
	return t.last, true
}

func (t *Tracker) publish(ctx context.Context, op events.Operation, id int64) {
	if err := t.publisher.PublishLedgerEvent(ctx, events.NewLedgerEvent(op, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"operation", op, "entry_id", id, "error", err)
		// Don't fail the request - the ledger is already written
	}
}

// Close closes the event publisher
func (t *Tracker) Close() error {
	if err := t.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}
