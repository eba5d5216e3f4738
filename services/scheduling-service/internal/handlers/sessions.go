package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/quickcapture"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
)

// SessionHandler exposes editor sessions, drag-moves and quick capture.
type SessionHandler struct {
	registry  *Registry
	snapshots Snapshots
	capture   *quickcapture.Adapter
	events    *session.Recorder
	logger    *slog.Logger
}

func NewSessionHandler(registry *Registry, snapshots Snapshots, capture *quickcapture.Adapter, events *session.Recorder, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, snapshots: snapshots, capture: capture, events: events, logger: logger}
}

func (h *SessionHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.Open)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.Close)
	mux.HandleFunc("POST /api/v1/sessions/{id}/{action}", h.Command)
	mux.HandleFunc("POST /api/v1/appointments/{id}/move", h.Move)
	mux.HandleFunc("POST /api/v1/quick-capture", h.QuickCapture)
	mux.HandleFunc("GET /api/v1/events", h.Events)
}

type sessionView struct {
	ID              string         `json:"id"`
	State           session.State  `json:"state"`
	Draft           *session.Draft `json:"draft,omitempty"`
	PendingDeleteID string         `json:"pending_delete_id,omitempty"`
}

func viewOf(c *session.Controller) sessionView {
	v := sessionView{ID: c.ID(), State: c.State(), PendingDeleteID: c.PendingDeleteID()}
	if v.State != session.Closed {
		d := c.Draft()
		v.Draft = &d
	}
	return v
}

type openRequest struct {
	Start string `json:"start"`
}

type draftRequest struct {
	CustomerID string `json:"customer_id"`
	ServiceID  string `json:"service_id"`
	StylistID  string `json:"stylist_id"`
	Start      string `json:"start"`
}

func (d draftRequest) draft() (session.Draft, error) {
	out := session.Draft{
		CustomerID: strings.TrimSpace(d.CustomerID),
		ServiceID:  strings.TrimSpace(d.ServiceID),
		StylistID:  strings.TrimSpace(d.StylistID),
	}
	if strings.TrimSpace(d.Start) != "" {
		start, err := model.ParseWallClock(d.Start)
		if err != nil {
			return session.Draft{}, &session.ValidationError{Fields: []string{"start"}, Reason: err.Error()}
		}
		out.Start = start
	}
	return out, nil
}

type appointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type moveRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	SessionID string `json:"session_id"`
}

type captureRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

type commandResponse struct {
	Session     sessionView        `json:"session"`
	Appointment *model.Appointment `json:"appointment,omitempty"`
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "failed to read body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	return decodeJSON(w, r, v)
}

// Open starts a session with a new draft at the clicked slot, or at now.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	var slot *time.Time
	if strings.TrimSpace(req.Start) != "" {
		start, err := model.ParseWallClock(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid start")
			return
		}
		slot = &start
	}

	c := h.registry.Open()
	if _, err := c.OpenNew(slot); err != nil {
		h.registry.Remove(c.ID())
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(c))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

// Close discards the session, dropping any open draft.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	c.Cancel()
	h.registry.Remove(c.ID())
	w.WriteHeader(http.StatusNoContent)
}

// Command runs one controller command against the session in the path.
func (h *SessionHandler) Command(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	ctx := r.Context()

	var (
		appt *model.Appointment
		err  error
	)
	switch action := r.PathValue("action"); action {
	case "edit":
		var req appointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		_, err = c.OpenEdit(strings.TrimSpace(req.AppointmentID))
	case "draft":
		var req draftRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var d session.Draft
		if d, err = req.draft(); err == nil {
			if c.State() == session.Closed {
				_, err = c.OpenDraft(d)
			} else {
				_, err = c.SetDraft(d)
			}
		}
	case "submit":
		var a model.Appointment
		if a, err = c.Submit(ctx); err == nil {
			appt = &a
			h.sync(ctx)
		}
	case "cancel":
		c.Cancel()
	case "request-delete":
		var req appointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		err = c.RequestDelete(strings.TrimSpace(req.AppointmentID))
	case "confirm-delete":
		if err = c.ConfirmDelete(ctx); err == nil {
			h.sync(ctx)
		}
	case "cancel-delete":
		err = c.CancelDelete()
	default:
		writeError(w, http.StatusNotFound, codeNotFound, "unknown session command "+action)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Session: viewOf(c), Appointment: appt})
}

// Move drops an appointment on another day and slot. The optional session_id
// runs the move through that session; otherwise a one-shot controller is used.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid date")
		return
	}
	slot, err := model.ParseTimeOfDay(req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid time")
		return
	}

	var c *session.Controller
	if id := strings.TrimSpace(req.SessionID); id != "" {
		var ok bool
		if c, ok = h.lookup(w, id); !ok {
			return
		}
	} else {
		c = h.registry.Transient()
	}

	ctx := r.Context()
	moved, err := c.Move(ctx, strings.TrimSpace(r.PathValue("id")), day, slot)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.sync(ctx)
	writeJSON(w, http.StatusOK, moved)
}

type captureResponse struct {
	Session        sessionView         `json:"session"`
	Parsed         quickcapture.Parsed `json:"parsed"`
	ServiceMatched bool                `json:"service_matched"`
	StylistMatched bool                `json:"stylist_matched"`
	StartParsed    bool                `json:"start_parsed"`
}

// QuickCapture parses free text and opens the result as a draft, in the
// given session or in a new one.
func (h *SessionHandler) QuickCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		c       *session.Controller
		created bool
	)
	if id := strings.TrimSpace(req.SessionID); id != "" {
		var ok bool
		if c, ok = h.lookup(w, id); !ok {
			return
		}
	} else {
		c = h.registry.Open()
		created = true
	}

	res, err := h.capture.Capture(r.Context(), c, req.Text)
	if err != nil {
		if created {
			h.registry.Remove(c.ID())
		}
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, captureResponse{
		Session:        viewOf(c),
		Parsed:         res.Parsed,
		ServiceMatched: res.ServiceMatched,
		StylistMatched: res.StylistMatched,
		StartParsed:    res.StartParsed,
	})
}

// Events lists the most recent controller events of all sessions.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	var events []session.Event
	if h.events != nil {
		events = h.events.Events()
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": nonNil(events)})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, id string) (*session.Controller, bool) {
	c, ok := h.registry.Get(strings.TrimSpace(id))
	if !ok {
		writeError(w, http.StatusNotFound, codeSessionNotFound, "session not found")
		return nil, false
	}
	return c, true
}

func (h *SessionHandler) sync(ctx context.Context) {
	if err := h.snapshots.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("snapshot sync after write failed", "err", err)
	}
}
