package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type entriesResponse struct {
	Entries []core.Entry `json:"entries"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.tracker.Entries(r.Context())
	if err != nil {
		s.respondError(w, r, log.OpList, err)
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e, err := s.tracker.Entry(r.Context(), id)
	if err != nil {
		s.respondError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEntryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.hasAmount() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: amount is required", core.ErrInvalidAmount).Error())
		return
	}
	f, err := req.fields(newEntryDefaults())
	if err != nil {
		s.respondError(w, r, log.OpValidate, err)
		return
	}

	e, err := s.tracker.CreateEntry(r.Context(), f)
	if err != nil {
		s.respondError(w, r, log.OpCreate, err)
		return
	}
	s.appMetrics.mutations.Add(1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogEntryChanged(r.Context(), log.OpCreate, e)

	w.Header().Set("Location", fmt.Sprintf("/api/entries/%d", e.ID))
	writeJSON(w, http.StatusCreated, e)
}

// handleUpdateEntry applies the members present in the body to the entry;
// absent members keep their current values.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := decodeEntryRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.tracker.PatchEntry(r.Context(), id, req.fields)
	if err != nil {
		s.respondError(w, r, log.OpUpdate, err)
		return
	}
	s.appMetrics.mutations.Add(1)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogEntryChanged(r.Context(), log.OpUpdate, e)

	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry answers 204 whether or not the id existed
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.tracker.DeleteEntry(r.Context(), id); err != nil {
		s.respondError(w, r, log.OpDelete, err)
		return
	}
	s.appMetrics.mutations.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}
