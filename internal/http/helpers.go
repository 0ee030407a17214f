package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/totals"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidActivity),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrCorruptLedger):
		return http.StatusConflict
	case isTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, services.ErrRatesUnavailable),
		errors.Is(err, totals.ErrMissingRate),
		errors.Is(err, totals.ErrInvalidRate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isTimeout reports a deadline hit anywhere in the chain, including
// http.Client timeouts that surface as net.Error.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// respondError logs err and writes it with the mapped status. Internal
// errors are not echoed to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, op, nil)
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

// parseID reads the {id} path value
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, core.ErrInvalidID
	}
	return id, nil
}
