package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/sheets"
)

// MirrorWorker copies the ledger to a mirror whenever it changes
type MirrorWorker struct {
	ledger *ledger.Store
	mirror sheets.LedgerMirror
}

func NewMirrorWorker(store *ledger.Store, mirror sheets.LedgerMirror) *MirrorWorker {
	return &MirrorWorker{
		ledger: store,
		mirror: mirror,
	}
}

// HandleLedgerEvent re-reads the ledger and mirrors it. The event only
// signals that something changed.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, e *events.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"message_id", e.MessageID,
		"operation", e.Operation,
		"entry_id", e.EntryID)

	if err := w.SyncAll(ctx); err != nil {
		return fmt.Errorf("mirror after %s of entry %d: %w", e.Operation, e.EntryID, err)
	}
	return nil
}

// SyncAll writes the current ledger to the mirror. A malformed ledger is
// logged and skipped.
func (w *MirrorWorker) SyncAll(ctx context.Context) error {
	entries, err := w.ledger.Load(ctx)
	if errors.Is(err, ledger.ErrCorruptLedger) {
		// The mirror keeps the last good copy.
		slog.ErrorContext(ctx, "Persisted ledger is malformed, mirror left untouched", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	if err := w.mirror.Replace(ctx, entries); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	slog.DebugContext(ctx, "Ledger mirrored", "entries", len(entries))
	return nil
}

// Run mirrors the ledger once, then again every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.SyncAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup mirror failed", "error", err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Mirror worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.SyncAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror failed", "error", err)
			}
		}
	}
}
