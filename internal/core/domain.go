package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Expense Activity = "Expense"
	Income  Activity = "Income"
)

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	TRY Currency = "TRY"
)

type (
	// Activity tells whether an entry takes money out or brings it in.
	Activity string

	// Currency is an ISO 4217 code.
	Currency string

	// EntryFields is the user-editable part of an Entry.
	EntryFields struct {
		Activity Activity
		Amount   decimal.Decimal
		Currency Currency
	}

	// Entry is one row of the ledger.
	Entry struct {
		ID       int64
		Activity Activity
		Amount   decimal.Decimal
		Currency Currency
	}
)

var (
	ErrInvalidActivity = errors.New("invalid activity")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidID       = errors.New("invalid id")
)

var supportedCurrencies = []Currency{USD, EUR, TRY}

// SupportedCurrencies returns the currencies an entry may be recorded in,
// in display order.
func SupportedCurrencies() []Currency {
	return append([]Currency(nil), supportedCurrencies...)
}

// IsValid reports whether the activity is Expense or Income.
func (a Activity) IsValid() bool {
	return a == Expense || a == Income
}

func (a Activity) String() string {
	return string(a)
}

// IsSupported reports whether c is one of SupportedCurrencies.
func (c Currency) IsSupported() bool {
	for _, s := range supportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}

// ParseActivity matches case-insensitively ("expense" -> Expense).
func ParseActivity(s string) (Activity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return Expense, nil
	case "income":
		return Income, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivity, s)
}

// ParseCurrency upper-cases the code and checks it is supported.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsSupported() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

func (f EntryFields) Validate() error {
	if !f.Activity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidActivity, f.Activity)
	}
	if f.Amount.IsNegative() {
		return fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	if !f.Currency.IsSupported() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, f.Currency)
	}
	return nil
}

func (e Entry) Validate() error {
	if e.ID < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidID, e.ID)
	}
	return e.Fields().Validate()
}

// Fields returns the editable part of the entry.
func (e Entry) Fields() EntryFields {
	return EntryFields{Activity: e.Activity, Amount: e.Amount, Currency: e.Currency}
}

// WithFields returns a copy of e carrying f, keeping the id.
func (e Entry) WithFields(f EntryFields) Entry {
	e.Activity = f.Activity
	e.Amount = f.Amount
	e.Currency = f.Currency
	return e
}

// entryJSON is the persisted row layout. Amount is written as a bare JSON
// number.
type entryJSON struct {
	ID       int64       `json:"id"`
	Activity Activity    `json:"activity"`
	Amount   json.Number `json:"amount"`
	Currency Currency    `json:"currency"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:       e.ID,
		Activity: e.Activity,
		Amount:   json.Number(e.Amount.String()),
		Currency: e.Currency,
	})
}

// UnmarshalJSON accepts amount as a number or as a numeric string; rows
// written by form inputs carry the raw text, possibly empty.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       int64           `json:"id"`
		Activity Activity        `json:"activity"`
		Amount   json.RawMessage `json:"amount"`
		Currency Currency        `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount := decimal.Zero
	switch s := strings.TrimSpace(string(raw.Amount)); s {
	case "", "null", `""`:
	default:
		if err := amount.UnmarshalJSON([]byte(s)); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
		}
	}
	*e = Entry{ID: raw.ID, Activity: raw.Activity, Amount: amount, Currency: raw.Currency}
	return nil
}
