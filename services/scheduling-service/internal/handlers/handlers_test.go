package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/feed"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/quickcapture"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/settings"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
)

var testNow = time.Date(2024, 8, 12, 7, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Memory
	hub      *feed.Hub
	registry *Registry
	server   *httptest.Server
}

func newFixture(t *testing.T, parser quickcapture.Parser) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem := store.NewMemory(nil)
	must(t, mem.UpsertService(ctx, model.Service{ID: "s1", Name: "Strih", DurationMinutes: 60, Price: 20}))
	must(t, mem.UpsertStylist(ctx, model.Stylist{ID: "st1", Name: "Eva"}))
	must(t, mem.UpsertCustomer(ctx, model.Customer{ID: "c1", Name: "Jana"}))
	must(t, mem.UpsertAppointment(ctx, model.Appointment{
		ID: "a1", CustomerID: "c1", CustomerName: "Jana", ServiceID: "s1", ServiceName: "Strih",
		StylistID: "st1", Start: time.Date(2024, 8, 12, 10, 0, 0, 0, time.UTC), DurationMinutes: 60,
	}))

	hub := feed.NewHub(mem, logger)
	must(t, hub.Sync(ctx))

	if parser == nil {
		parser = quickcapture.ParserFunc(func(context.Context, string) (quickcapture.Parsed, error) {
			return quickcapture.Parsed{}, nil
		})
	}
	now := func() time.Time { return testNow }
	events := session.NewRecorder(20)
	registry := NewRegistry(hub, mem, events, logger, now)

	mux := http.NewServeMux()
	NewCalendarHandler(hub, settings.Default(), logger, now).Routes(mux)
	NewCatalogHandler(mem, hub, logger).Routes(mux)
	NewSessionHandler(registry, hub, quickcapture.NewAdapter(parser, hub, logger), events, logger).Routes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{store: mem, hub: hub, registry: registry, server: srv}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestCalendarWeekAndNavigation(t *testing.T) {
	f := newFixture(t, nil)

	var week struct {
		Window struct {
			Granularity string    `json:"granularity"`
			Start       time.Time `json:"start"`
		} `json:"window"`
		Columns []struct {
			Date       time.Time         `json:"date"`
			Placements []json.RawMessage `json:"placements"`
		} `json:"columns"`
		Prev string `json:"prev"`
		Next string `json:"next"`
	}
	if code := f.do(t, http.MethodGet, "/api/v1/calendar?view=week&date=2024-08-14", "", &week); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if week.Window.Granularity != "week" || !week.Window.Start.Equal(time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %+v", week.Window)
	}
	if len(week.Columns) != 7 {
		t.Fatalf("expected 7 columns, got %d", len(week.Columns))
	}
	if len(week.Columns[0].Placements) != 1 || len(week.Columns[1].Placements) != 0 {
		t.Fatalf("expected a1 on Monday only")
	}
	if week.Prev != "2024-08-05" || week.Next != "2024-08-19" {
		t.Fatalf("unexpected navigation %s / %s", week.Prev, week.Next)
	}

	var next struct {
		Window struct {
			Start time.Time `json:"start"`
		} `json:"window"`
	}
	f.do(t, http.MethodGet, "/api/v1/calendar?view=day&date=2024-08-14&nav=next", "", &next)
	if !next.Window.Start.Equal(time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next day, got %v", next.Window.Start)
	}

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown view", query: "view=year"},
		{name: "bad date", query: "date=14.08.2024"},
		{name: "bad nav", query: "nav=sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			if code := f.do(t, http.MethodGet, "/api/v1/calendar?"+tt.query, "", &e); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
			if e.Code != codeInvalidQuery {
				t.Fatalf("unexpected code %q", e.Code)
			}
		})
	}
}

func TestSlots(t *testing.T) {
	f := newFixture(t, nil)

	var resp struct {
		Slots []slotItem `json:"slots"`
	}
	if code := f.do(t, http.MethodGet, "/api/v1/slots?stylist_id=st1&service_id=s1&date=2024-08-12", "", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	// 08:00..17:00 every 15 minutes is 37 starts; 09:15..10:45 overlap a1.
	if len(resp.Slots) != 30 {
		t.Fatalf("expected 30 slots, got %d", len(resp.Slots))
	}
	starts := make(map[string]bool)
	for _, s := range resp.Slots {
		starts[s.StartTime] = true
	}
	if !starts["2024-08-12T09:00:00"] || starts["2024-08-12T09:15:00"] || !starts["2024-08-12T11:00:00"] {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}

	if code := f.do(t, http.MethodGet, "/api/v1/slots?stylist_id=st1&service_id=nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code := f.do(t, http.MethodGet, "/api/v1/slots?stylist_id=st1", "", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t, nil)

	var ov model.Overview
	if code := f.do(t, http.MethodGet, "/api/v1/overview", "", &ov); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if ov.TotalRevenue != 20 || ov.MonthAppointments != 1 || ov.Monthly[time.August-1].Total != 20 {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if len(ov.Recent) != 1 || ov.Recent[0].AppointmentID != "a1" || ov.Recent[0].CustomerName != "Jana" {
		t.Fatalf("unexpected recent list %+v", ov.Recent)
	}

	for _, q := range []string{"abc", "0", "101"} {
		if code := f.do(t, http.MethodGet, "/api/v1/overview?recent="+q, "", nil); code != http.StatusBadRequest {
			t.Fatalf("recent=%s: expected 400, got %d", q, code)
		}
	}
}

func TestSessionSubmitConflictThenCommit(t *testing.T) {
	f := newFixture(t, nil)

	var opened sessionView
	if code := f.do(t, http.MethodPost, "/api/v1/sessions", `{"start":"2024-08-12T10:30"}`, &opened); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if opened.State != session.Drafting || opened.Draft == nil || !opened.Draft.Start.Equal(time.Date(2024, 8, 12, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected session %+v", opened)
	}
	base := "/api/v1/sessions/" + opened.ID

	if code := f.do(t, http.MethodPost, base+"/draft", `{"customer_id":"c1","service_id":"s1","stylist_id":"st1","start":"2024-08-12T10:30:00"}`, nil); code != http.StatusOK {
		t.Fatalf("draft: expected 200, got %d", code)
	}

	var conflictResp errorResponse
	if code := f.do(t, http.MethodPost, base+"/submit", "", &conflictResp); code != http.StatusConflict {
		t.Fatalf("submit: expected 409, got %d", code)
	}
	if conflictResp.Code != codeConflict || conflictResp.Conflict == nil || conflictResp.Conflict.ID != "a1" {
		t.Fatalf("unexpected conflict response %+v", conflictResp)
	}
	if !strings.Contains(conflictResp.Error, "Eva") {
		t.Fatalf("expected stylist name in %q", conflictResp.Error)
	}

	f.do(t, http.MethodPost, base+"/draft", `{"customer_id":"c1","service_id":"s1","stylist_id":"st1","start":"2024-08-12T11:00:00"}`, nil)
	var committed commandResponse
	if code := f.do(t, http.MethodPost, base+"/submit", "", &committed); code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", code)
	}
	if committed.Session.State != session.Closed || committed.Appointment == nil || committed.Appointment.CustomerName != "Jana" {
		t.Fatalf("unexpected commit response %+v", committed)
	}

	var customers struct {
		Customers []model.CustomerStats `json:"customers"`
	}
	f.do(t, http.MethodGet, "/api/v1/customers", "", &customers)
	if len(customers.Customers) != 1 || customers.Customers[0].Visits != 2 || customers.Customers[0].TotalSpent != 40 {
		t.Fatalf("unexpected stats %+v", customers.Customers)
	}

	var events struct {
		Events []session.Event `json:"events"`
	}
	f.do(t, http.MethodGet, "/api/v1/events", "", &events)
	kinds := make([]session.EventKind, 0, len(events.Events))
	for _, e := range events.Events {
		kinds = append(kinds, e.Kind)
	}
	want := []session.EventKind{session.EventOpened, session.EventConflict, session.EventCommitted}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}
}

func TestSessionCommandErrors(t *testing.T) {
	f := newFixture(t, nil)

	if code := f.do(t, http.MethodGet, "/api/v1/sessions/missing", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}

	var opened sessionView
	f.do(t, http.MethodPost, "/api/v1/sessions", "", &opened)
	if opened.Draft == nil || !opened.Draft.Start.Equal(time.Date(2024, 8, 12, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected draft at now, got %+v", opened.Draft)
	}
	base := "/api/v1/sessions/" + opened.ID

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "missing references", path: "/submit", status: http.StatusUnprocessableEntity, code: codeValidation},
		{name: "confirm without request", path: "/confirm-delete", status: http.StatusConflict, code: codeInvalidState},
		{name: "unknown command", path: "/launch", status: http.StatusNotFound, code: codeNotFound},
		{name: "bad start", path: "/draft", body: `{"start":"yesterday"}`, status: http.StatusUnprocessableEntity, code: codeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			if code := f.do(t, http.MethodPost, base+tt.path, tt.body, &e); code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, code)
			}
			if e.Code != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, e.Code)
			}
		})
	}

	if code := f.do(t, http.MethodDelete, base, "", nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if f.registry.Len() != 0 {
		t.Fatalf("expected session removed")
	}
}

func TestTwoStepDelete(t *testing.T) {
	f := newFixture(t, nil)

	var opened sessionView
	f.do(t, http.MethodPost, "/api/v1/sessions", "", &opened)
	base := "/api/v1/sessions/" + opened.ID

	var pending commandResponse
	f.do(t, http.MethodPost, base+"/request-delete", `{"appointment_id":"a1"}`, &pending)
	if pending.Session.State != session.PendingDelete || pending.Session.PendingDeleteID != "a1" {
		t.Fatalf("unexpected pending state %+v", pending.Session)
	}
	var restored commandResponse
	f.do(t, http.MethodPost, base+"/cancel-delete", "", &restored)
	if restored.Session.State != session.Drafting {
		t.Fatalf("expected drafting after cancel-delete, got %s", restored.Session.State)
	}

	f.do(t, http.MethodPost, base+"/request-delete", `{"appointment_id":"a1"}`, nil)
	var done commandResponse
	if code := f.do(t, http.MethodPost, base+"/confirm-delete", "", &done); code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", code)
	}
	if done.Session.State != session.Closed {
		t.Fatalf("expected closed, got %s", done.Session.State)
	}
	list, _ := f.store.Appointments(context.Background())
	if len(list) != 0 {
		t.Fatalf("expected appointment removed, got %+v", list)
	}
	if _, ok := f.hub.Snapshot().Appointment("a1"); ok {
		t.Fatalf("snapshot still holds a1")
	}
}

func TestMove(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	must(t, f.store.UpsertAppointment(ctx, model.Appointment{
		ID: "a2", CustomerID: "c1", ServiceID: "s1", StylistID: "st1",
		Start: time.Date(2024, 8, 13, 9, 0, 0, 0, time.UTC), DurationMinutes: 60,
	}))
	must(t, f.hub.Sync(ctx))

	var moved model.Appointment
	if code := f.do(t, http.MethodPost, "/api/v1/appointments/a1/move", `{"date":"2024-08-13","time":"11:00"}`, &moved); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !moved.Start.Equal(time.Date(2024, 8, 13, 11, 0, 0, 0, time.UTC)) || moved.DurationMinutes != 60 {
		t.Fatalf("unexpected move %+v", moved)
	}

	var e errorResponse
	if code := f.do(t, http.MethodPost, "/api/v1/appointments/a1/move", `{"date":"2024-08-13","time":"09:30"}`, &e); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if e.Conflict == nil || e.Conflict.ID != "a2" {
		t.Fatalf("expected conflict with a2, got %+v", e)
	}
	a1, _ := f.hub.Snapshot().Appointment("a1")
	if !a1.Start.Equal(time.Date(2024, 8, 13, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("rejected move changed a1: %v", a1.Start)
	}

	if code := f.do(t, http.MethodPost, "/api/v1/appointments/a1/move", `{"date":"2024-08-13","time":"25:00"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestQuickCapture(t *testing.T) {
	parser := quickcapture.ParserFunc(func(_ context.Context, text string) (quickcapture.Parsed, error) {
		switch text {
		case "strih u evy o 14":
			return quickcapture.Parsed{ServiceName: "strih", StylistName: "EVA", StartTime: "2024-08-12T14:00:00"}, nil
		case "offline":
			return quickcapture.Parsed{}, errors.New("connection refused")
		default:
			return quickcapture.Parsed{ServiceName: "massage"}, nil
		}
	})
	f := newFixture(t, parser)

	var resp captureResponse
	if code := f.do(t, http.MethodPost, "/api/v1/quick-capture", `{"text":"strih u evy o 14"}`, &resp); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if !resp.ServiceMatched || !resp.StylistMatched || !resp.StartParsed {
		t.Fatalf("unexpected match flags %+v", resp)
	}
	if resp.Session.State != session.Drafting || resp.Session.Draft == nil || resp.Session.Draft.ServiceID != "s1" || resp.Session.Draft.StylistID != "st1" {
		t.Fatalf("unexpected session %+v", resp.Session)
	}
	if f.registry.Len() != 1 {
		t.Fatalf("expected one session, got %d", f.registry.Len())
	}

	for _, text := range []string{"offline", "unknown", ""} {
		var e errorResponse
		if code := f.do(t, http.MethodPost, "/api/v1/quick-capture", `{"text":"`+text+`"}`, &e); code != http.StatusUnprocessableEntity {
			t.Fatalf("%q: expected 422, got %d", text, code)
		}
		if e.Code != codeParseFailed {
			t.Fatalf("%q: unexpected code %q", text, e.Code)
		}
	}
	if f.registry.Len() != 1 {
		t.Fatalf("failed captures must not leave sessions, got %d", f.registry.Len())
	}
}

func TestCatalogCRUD(t *testing.T) {
	f := newFixture(t, nil)

	var created model.Service
	if code := f.do(t, http.MethodPost, "/api/v1/services", `{"name":"Farbenie","duration_minutes":90,"price":45}`, &created); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.ID == "" || created.Name != "Farbenie" {
		t.Fatalf("unexpected service %+v", created)
	}

	var updated model.Stylist
	if code := f.do(t, http.MethodPut, "/api/v1/stylists/st1", `{"name":"Eva Novak","color":"#f59e0b"}`, &updated); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if updated.ID != "st1" {
		t.Fatalf("path id must win, got %+v", updated)
	}

	var list struct {
		Services []model.Service `json:"services"`
	}
	f.do(t, http.MethodGet, "/api/v1/services", "", &list)
	if len(list.Services) != 2 {
		t.Fatalf("expected 2 services, got %+v", list.Services)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "invalid service", method: http.MethodPut, path: "/api/v1/services/s1", body: `{"name":"","duration_minutes":0}`, status: http.StatusUnprocessableEntity},
		{name: "bad json", method: http.MethodPost, path: "/api/v1/customers", body: `{`, status: http.StatusBadRequest},
		{name: "delete missing", method: http.MethodDelete, path: "/api/v1/stylists/nobody", status: http.StatusNotFound},
		{name: "delete customer", method: http.MethodDelete, path: "/api/v1/customers/c1", status: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := f.do(t, tt.method, tt.path, tt.body, nil); code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, code)
			}
		})
	}
	if _, ok := f.hub.Snapshot().Customer("c1"); ok {
		t.Fatalf("deleted customer still in snapshot")
	}
}

func TestRegistryPurgeIdle(t *testing.T) {
	now := testNow
	clock := func() time.Time { return now }
	r := NewRegistry(staticSnapshot{}, nil, nil, nil, clock)

	stale := r.Open()
	now = now.Add(20 * time.Minute)
	fresh := r.Open()
	now = now.Add(15 * time.Minute)

	if n := r.PurgeIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if _, ok := r.Get(stale.ID()); ok {
		t.Fatalf("stale session kept")
	}
	if _, ok := r.Get(fresh.ID()); !ok {
		t.Fatalf("fresh session purged")
	}
}

type staticSnapshot struct{}

func (staticSnapshot) Snapshot() model.Snapshot { return model.Snapshot{} }
