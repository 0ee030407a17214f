package core

import "github.com/shopspring/decimal"

// Totals is the ledger summed into a single display currency.
type Totals struct {
	Expense  decimal.Decimal
	Income   decimal.Decimal
	Currency Currency
}

// Balance is income minus expense.
func (t Totals) Balance() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}
