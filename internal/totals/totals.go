// Package totals sums a ledger into a display currency.
package totals

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	// ErrMissingRate means the rate table has no rate for a currency used
	// by the ledger.
	ErrMissingRate = errors.New("missing exchange rate")

	// ErrInvalidRate means a rate is zero or negative.
	ErrInvalidRate = errors.New("invalid exchange rate")
)

// Calculate converts every entry into display and sums expenses and
// incomes separately.
//
// A rate expresses units of the entry's currency per one unit of display,
// so the converted value is amount / rate. The display currency converts
// at 1 even when the table lacks it. A missing or non-positive rate for
// any currency present in the ledger fails the whole computation; partial
// totals are never returned.
func Calculate(entries []core.Entry, rates core.RateTable, display core.Currency) (core.Totals, error) {
	out := core.Totals{Expense: decimal.Zero, Income: decimal.Zero, Currency: display}

	for _, e := range entries {
		rate, ok := rates.Rate(e.Currency, display)
		if !ok {
			return core.Totals{}, fmt.Errorf("%w: %s per %s (entry %d)", ErrMissingRate, e.Currency, display, e.ID)
		}
		if !rate.IsPositive() {
			return core.Totals{}, fmt.Errorf("%w: %s=%s", ErrInvalidRate, e.Currency, rate)
		}

		converted := e.Amount.Div(rate)
		if e.Activity == core.Expense {
			out.Expense = out.Expense.Add(converted)
		} else {
			out.Income = out.Income.Add(converted)
		}
	}

	return out, nil
}
