package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 16

// entryRequest is the body of POST and PUT. Amount may be a JSON number,
// exponent form included, or a string with "." or "," as decimal separator.
type entryRequest struct {
	Activity *string         `json:"activity"`
	Amount   json.RawMessage `json:"amount"`
	Currency *string         `json:"currency"`
}

var errMalformedBody = errors.New("malformed request body")

func decodeEntryRequest(r *http.Request) (entryRequest, error) {
	var req entryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return entryRequest{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return req, nil
}

// fields merges the request over base. Absent members keep base values.
func (req entryRequest) fields(base core.EntryFields) (core.EntryFields, error) {
	f := base
	if req.Activity != nil {
		a, err := core.ParseActivity(*req.Activity)
		if err != nil {
			return core.EntryFields{}, err
		}
		f.Activity = a
	}
	if req.Currency != nil {
		c, err := core.ParseCurrency(*req.Currency)
		if err != nil {
			return core.EntryFields{}, err
		}
		f.Currency = c
	}
	if req.hasAmount() {
		amount, err := parseAmountJSON(req.Amount)
		if err != nil {
			return core.EntryFields{}, err
		}
		f.Amount = amount
	}
	return f, nil
}

func (req entryRequest) hasAmount() bool {
	raw := bytes.TrimSpace(req.Amount)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func parseAmountJSON(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
		}
		return core.ParseAmount(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", core.ErrInvalidAmount, err)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || d.IsNegative() {
		return decimal.Zero, core.ErrInvalidAmount
	}
	return d, nil
}

// newEntryDefaults are applied to absent members on create
func newEntryDefaults() core.EntryFields {
	return core.EntryFields{Activity: core.Expense, Currency: core.USD}
}
