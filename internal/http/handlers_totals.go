package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

var errBadCurrencyParam = errors.New("invalid currency parameter")

type totalsResponse struct {
	Expense  json.Number   `json:"expense"`
	Income   json.Number   `json:"income"`
	Balance  json.Number   `json:"balance"`
	Currency core.Currency `json:"currency"`
	Stale    bool          `json:"stale"`
}

// handleTotals converts the ledger into ?currency= (default: the
// configured display currency)
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	display := s.defaultCurrency
	if v := strings.TrimSpace(r.URL.Query().Get("currency")); v != "" {
		c, err := core.ParseCurrency(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: %w", errBadCurrencyParam, err).Error())
			return
		}
		display = c
	}

	res, err := s.tracker.Totals(r.Context(), display)
	if err != nil {
		s.respondError(w, r, log.OpTotals, err)
		return
	}
	if res.Stale {
		s.appMetrics.staleTotals.Add(1)
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Totals calculated",
		log.NewFields().WithTotals(res.Totals, res.Stale).ToSlice()...)

	writeJSON(w, http.StatusOK, totalsResponse{
		Expense:  json.Number(res.Expense.String()),
		Income:   json.Number(res.Income.String()),
		Balance:  json.Number(res.Balance().String()),
		Currency: res.Currency,
		Stale:    res.Stale,
	})
}

type currenciesResponse struct {
	Currencies []core.Currency `json:"currencies"`
	Default    core.Currency   `json:"default"`
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currenciesResponse{
		Currencies: core.SupportedCurrencies(),
		Default:    s.defaultCurrency,
	})
}
