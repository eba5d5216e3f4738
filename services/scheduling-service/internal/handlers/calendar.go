package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/settings"
)

// CalendarHandler serves read-only projections of the current snapshot.
type CalendarHandler struct {
	source   session.SnapshotSource
	settings *settings.Settings
	logger   *slog.Logger
	now      func() time.Time
}

// NewCalendarHandler builds the handler. now must return the salon's wall clock.
func NewCalendarHandler(source session.SnapshotSource, s *settings.Settings, logger *slog.Logger, now func() time.Time) *CalendarHandler {
	return &CalendarHandler{source: source, settings: s, logger: logger, now: now}
}

func (h *CalendarHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/calendar", h.Calendar)
	mux.HandleFunc("GET /api/v1/slots", h.Slots)
	mux.HandleFunc("GET /api/v1/overview", h.Overview)
}

// Overview serves dashboard totals. ?recent= sets the length of the recent list.
func (h *CalendarHandler) Overview(w http.ResponseWriter, r *http.Request) {
	recent := model.DefaultRecent
	if raw := strings.TrimSpace(r.URL.Query().Get("recent")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "recent must be between 1 and 100")
			return
		}
		recent = n
	}
	snap := h.source.Snapshot()
	writeJSON(w, http.StatusOK, model.BuildOverview(snap.Customers, snap.Appointments, snap.Services, h.now(), recent))
}

type calendarResponse struct {
	calendar.Layout
	Prev string `json:"prev"`
	Next string `json:"next"`
}

// Calendar projects the window of ?view= around ?date=. ?nav=prev|next moves
// one window from date; ?stylist_id= filters to one stylist.
func (h *CalendarHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g, err := calendar.ParseGranularity(q.Get("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	anchor, err := parseDate(strings.TrimSpace(q.Get("date")), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "invalid date")
		return
	}

	cfg := h.settings.Calendar()
	window := calendar.WindowFor(anchor, g, cfg.WeekStart)
	switch q.Get("nav") {
	case "":
	case "prev":
		window = window.Prev()
	case "next":
		window = window.Next()
	default:
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "nav must be prev or next")
		return
	}

	snap := h.source.Snapshot()
	layout := calendar.Project(snap.Appointments, window, cfg, calendar.WithStylist(strings.TrimSpace(q.Get("stylist_id"))))
	writeJSON(w, http.StatusOK, calendarResponse{
		Layout: layout,
		Prev:   window.Prev().Start.Format(time.DateOnly),
		Next:   window.Next().Start.Format(time.DateOnly),
	})
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots suggests free starts for a service with a stylist on one day.
func (h *CalendarHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stylistID := strings.TrimSpace(q.Get("stylist_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	if stylistID == "" || serviceID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "stylist_id and service_id required")
		return
	}
	now := h.now()
	day, err := parseDate(strings.TrimSpace(q.Get("date")), now)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "invalid date")
		return
	}

	snap := h.source.Snapshot()
	svc, ok := snap.Service(serviceID)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "service not found")
		return
	}
	if _, ok := snap.Stylist(stylistID); !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "stylist not found")
		return
	}

	free := availability.FreeSlots(conflict.NewIndex(snap.Appointments), availability.Query{
		StylistID: stylistID,
		Service:   svc,
		Day:       day,
		Hours:     h.settings.Hours(),
		Step:      h.settings.SuggestStep(),
		Now:       now,
	})
	items := make([]slotItem, 0, len(free))
	for _, s := range free {
		items = append(items, slotItem{
			StartTime: s.Start.Format(model.WallClockLayout),
			EndTime:   s.End.Format(model.WallClockLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": items})
}
