// Package core provides money parsing and handling utilities.
//
// This file contains the amount parser used by every input path and the
// exchange-rate table used to express amounts in a display currency.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-typed decimal string into an amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Zero is accepted; signs, exponents and anything that is not a plain
// decimal are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		if r == '.' {
			continue
		}
		if !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
		digits++
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RateTable maps a currency to how many units of it buy one unit of the
// display currency the table was fetched for.
type RateTable map[Currency]decimal.Decimal

// Rate returns the rate for c. The display currency itself always
// converts at 1, whatever the table says.
func (t RateTable) Rate(c, display Currency) (decimal.Decimal, bool) {
	if c == display {
		return decimal.NewFromInt(1), true
	}
	r, ok := t[c]
	return r, ok
}

// Clone returns an independent copy of t.
func (t RateTable) Clone() RateTable {
	if t == nil {
		return nil
	}
	out := make(RateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
