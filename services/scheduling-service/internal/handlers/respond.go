// Package handlers is the HTTP surface of the scheduling service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/quickcapture"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidQuery       = "invalid_query"
	codeValidation         = "validation_failed"
	codeConflict           = "scheduling_conflict"
	codeInvalidState       = "invalid_state"
	codeParseFailed        = "quick_capture_failed"
	codeNotFound           = "not_found"
	codeSessionNotFound    = "session_not_found"
	codeStoreUnavailable   = "store_unavailable"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Conflict is set for scheduling conflicts so the client can point at the blocking appointment.
	Conflict *model.Appointment `json:"conflict,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps the typed errors of the session, quick-capture and
// store packages onto status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var conflictErr *session.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		resp := errorResponse{Error: err.Error(), Code: codeConflict}
		if conflictErr.Existing.ID != "" {
			existing := conflictErr.Existing
			resp.Conflict = &existing
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, session.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
	case errors.Is(err, session.ErrInvalidState):
		writeError(w, http.StatusConflict, codeInvalidState, err.Error())
	case errors.Is(err, quickcapture.ErrParse):
		writeError(w, http.StatusUnprocessableEntity, codeParseFailed, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, session.ErrStore):
		writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json body")
		return false
	}
	return true
}

// parseDate reads a YYYY-MM-DD query value, falling back to today.
func parseDate(raw string, today time.Time) (time.Time, error) {
	if raw == "" {
		return model.Day(today), nil
	}
	return time.Parse(time.DateOnly, raw)
}
