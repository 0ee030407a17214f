package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror keeps a copy of the ledger outside the primary store.
	LedgerMirror interface {
		// Replace overwrites the mirror with entries, in order.
		Replace(ctx context.Context, entries []core.Entry) error
	}
)

// Header is the first row written to a mirror.
var Header = []any{"ID", "Activity", "Amount", "Currency"}

// EntriesToRows renders entries as a header row followed by one row per
// entry.
func EntriesToRows(entries []core.Entry) [][]any {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, append([]any(nil), Header...))
	for _, e := range entries {
		rows = append(rows, []any{e.ID, string(e.Activity), e.Amount.String(), string(e.Currency)})
	}
	return rows
}
