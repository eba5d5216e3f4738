// Package session drives one appointment editor: opening drafts, validating
// and committing them, drag-moves and the two-step delete.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	Closed           State = "closed"
	Drafting         State = "drafting"
	Validating       State = "validating"
	ConflictChecking State = "conflict_checking"
	Committing       State = "committing"
	PendingDelete    State = "pending_delete"
)

// Draft is the editor's content. ID is empty until the appointment exists.
type Draft struct {
	ID         string    `json:"id,omitempty"`
	CustomerID string    `json:"customer_id"`
	ServiceID  string    `json:"service_id"`
	StylistID  string    `json:"stylist_id"`
	Start      time.Time `json:"start"`
}

// SnapshotSource returns the locally held view of the store.
type SnapshotSource interface {
	Snapshot() model.Snapshot
}

// Committer is the write side of the store used by the controller.
type Committer interface {
	UpsertAppointment(ctx context.Context, a model.Appointment) error
	Delete(ctx context.Context, c model.Collection, id string) error
}

// Controller serializes the commands of one editor session. Commands never
// run concurrently; events are delivered synchronously and the sink must not
// call back into the controller.
type Controller struct {
	id     string
	source SnapshotSource
	store  Committer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	sink   func(Event)
	tracer trace.Tracer

	mu          sync.Mutex
	state       atomic.Value
	draft       Draft
	newApptID   string // minted when a new draft opens, kept across retries
	deleteID    string
	deleteFrom  State
	lastTouched atomic.Int64
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func WithIDGenerator(fn func() string) Option { return func(c *Controller) { c.newID = fn } }

func WithEvents(sink func(Event)) Option { return func(c *Controller) { c.sink = sink } }

func New(source SnapshotSource, committer Committer, opts ...Option) *Controller {
	c := &Controller{
		id:     uuid.NewString(),
		source: source,
		store:  committer,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
		tracer: otelx.Tracer("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", c.id)
	c.state.Store(Closed)
	c.touch()
	return c
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) State() State { return c.state.Load().(State) }

// Draft returns the current editor content.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// PendingDeleteID returns the appointment awaiting delete confirmation.
func (c *Controller) PendingDeleteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteID
}

// LastActive reports when the controller last received a command.
func (c *Controller) LastActive() time.Time {
	return time.Unix(0, c.lastTouched.Load())
}

func (c *Controller) touch() { c.lastTouched.Store(c.now().UnixNano()) }

func (c *Controller) setState(s State) {
	prev := c.State()
	c.state.Store(s)
	if prev != s {
		c.logger.Debug("session state changed", "from", prev, "to", s)
	}
}

// OpenNew opens an empty draft. slot is the grid cell the user clicked;
// nil starts the draft at the current time.
func (c *Controller) OpenNew(slot *time.Time) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireOpenable("open-new"); err != nil {
		return Draft{}, err
	}

	start := model.Naive(c.now()).Truncate(time.Minute)
	if slot != nil {
		start = model.Naive(*slot)
	}
	return c.open(Draft{Start: start}), nil
}

// OpenEdit opens the editor on an existing appointment.
func (c *Controller) OpenEdit(id string) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireOpenable("open-edit"); err != nil {
		return Draft{}, err
	}

	appt, ok := c.source.Snapshot().Appointment(id)
	if !ok {
		return Draft{}, &ValidationError{Fields: []string{"id"}, Reason: "appointment not found"}
	}
	return c.open(Draft{
		ID:         appt.ID,
		CustomerID: appt.CustomerID,
		ServiceID:  appt.ServiceID,
		StylistID:  appt.StylistID,
		Start:      appt.Start,
	}), nil
}

// OpenDraft opens the editor pre-filled with d, for example a quick-capture
// result. A non-empty d.ID must name an existing appointment.
func (c *Controller) OpenDraft(d Draft) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if err := c.requireOpenable("open-draft"); err != nil {
		return Draft{}, err
	}
	if d.ID != "" {
		if _, ok := c.source.Snapshot().Appointment(d.ID); !ok {
			return Draft{}, &ValidationError{Fields: []string{"id"}, Reason: "appointment not found"}
		}
	}
	d.Start = model.Naive(d.Start)
	return c.open(d), nil
}

// SetDraft replaces the editor content. The appointment ID cannot change.
func (c *Controller) SetDraft(d Draft) (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if st := c.State(); st != Drafting {
		return Draft{}, &StateError{Command: "set-draft", State: st}
	}
	d.ID = c.draft.ID
	d.Start = model.Naive(d.Start)
	c.draft = d
	return d, nil
}

func (c *Controller) requireOpenable(cmd string) error {
	switch st := c.State(); st {
	case Closed, Drafting:
		return nil
	default:
		return &StateError{Command: cmd, State: st}
	}
}

func (c *Controller) open(d Draft) Draft {
	c.draft = d
	c.newApptID = ""
	if d.ID == "" {
		c.newApptID = c.newID()
	}
	c.deleteID = ""
	c.setState(Drafting)
	c.emit(Event{Kind: EventOpened, Draft: &d})
	return d
}

// Submit validates the draft, checks it against the stylist's other
// appointments and commits it. On any error the editor stays open.
func (c *Controller) Submit(ctx context.Context) (model.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if st := c.State(); st != Drafting {
		return model.Appointment{}, &StateError{Command: "submit", State: st}
	}

	ctx, span := c.tracer.Start(ctx, "session.Submit", trace.WithAttributes(
		attribute.String("session.id", c.id),
		attribute.Bool("appointment.existing", c.draft.ID != ""),
	))
	defer span.End()

	c.setState(Validating)
	snap := c.source.Snapshot()
	appt, err := c.resolve(snap, c.draft)
	if err != nil {
		c.setState(Drafting)
		span.SetStatus(codes.Error, "validation")
		return model.Appointment{}, err
	}

	c.setState(ConflictChecking)
	if err := c.check(snap, appt); err != nil {
		c.setState(Drafting)
		span.SetStatus(codes.Error, "conflict")
		return model.Appointment{}, err
	}

	c.setState(Committing)
	if err := c.commit(ctx, snap, appt, "submit"); err != nil {
		c.setState(Drafting)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit")
		return model.Appointment{}, err
	}

	c.draft = Draft{}
	c.newApptID = ""
	c.setState(Closed)
	c.logger.Info("appointment committed", "appointment_id", appt.ID, "stylist_id", appt.StylistID, "start", appt.Start)
	c.emit(Event{Kind: EventCommitted, Appointment: &appt})
	return appt, nil
}

// resolve turns the draft into an appointment, copying the service duration
// and the customer and service names at this moment.
func (c *Controller) resolve(snap model.Snapshot, d Draft) (model.Appointment, error) {
	var missing []string
	customer, ok := snap.Customer(d.CustomerID)
	if !ok {
		missing = append(missing, "customer_id")
	}
	service, ok := snap.Service(d.ServiceID)
	if !ok {
		missing = append(missing, "service_id")
	}
	if _, ok := snap.Stylist(d.StylistID); !ok {
		missing = append(missing, "stylist_id")
	}
	if d.Start.IsZero() {
		missing = append(missing, "start")
	}
	if len(missing) > 0 {
		return model.Appointment{}, &ValidationError{Fields: missing, Reason: "missing or unknown references"}
	}

	id := d.ID
	if id == "" {
		id = c.newApptID
	}
	appt := model.Appointment{
		ID:              id,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		ServiceID:       service.ID,
		ServiceName:     service.Name,
		StylistID:       d.StylistID,
		Start:           model.Naive(d.Start),
		DurationMinutes: service.DurationMinutes,
	}
	if err := appt.Validate(); err != nil {
		return model.Appointment{}, &ValidationError{Reason: err.Error()}
	}
	return appt, nil
}

func (c *Controller) check(snap model.Snapshot, appt model.Appointment) error {
	existing, ok := conflict.FindConflict(appt, snap.Appointments, appt.ID)
	if !ok {
		return nil
	}
	return c.conflictDetected(snap, appt, existing)
}

func (c *Controller) conflictDetected(snap model.Snapshot, appt, existing model.Appointment) error {
	stylist, _ := snap.Stylist(appt.StylistID)
	err := &ConflictError{StylistID: appt.StylistID, StylistName: stylist.Name, Existing: existing}
	c.logger.Info("appointment conflict", "stylist_id", appt.StylistID, "existing_id", existing.ID)
	c.emit(Event{Kind: EventConflict, Appointment: &appt, Err: err})
	return err
}

// commit writes appt. A conflict found by the store's own re-check is
// reported like a local conflict; any other failure is a StoreError.
func (c *Controller) commit(ctx context.Context, snap model.Snapshot, appt model.Appointment, op string) error {
	err := c.store.UpsertAppointment(ctx, appt)
	if err == nil {
		return nil
	}
	var sce *store.ConflictError
	if errors.As(err, &sce) {
		return c.conflictDetected(snap, appt, sce.Existing)
	}
	if errors.Is(err, store.ErrConflict) {
		return c.conflictDetected(snap, appt, model.Appointment{})
	}
	serr := &StoreError{Op: op, Err: err}
	c.logger.Error("appointment commit failed", "appointment_id", appt.ID, "err", err)
	c.emit(Event{Kind: EventFailed, Appointment: &appt, Err: serr})
	return serr
}

// Cancel closes the editor and discards the draft without touching the store.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if c.State() == Closed {
		return
	}
	c.draft = Draft{}
	c.newApptID = ""
	c.deleteID = ""
	c.setState(Closed)
	c.emit(Event{Kind: EventCancelled})
}

// RequestDelete is the first step of deleting an appointment. Nothing is
// removed until ConfirmDelete.
func (c *Controller) RequestDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	st := c.State()
	if st != Closed && st != Drafting {
		return &StateError{Command: "request-delete", State: st}
	}
	if _, ok := c.source.Snapshot().Appointment(id); !ok {
		return &ValidationError{Fields: []string{"id"}, Reason: "appointment not found"}
	}
	c.deleteID = id
	c.deleteFrom = st
	c.setState(PendingDelete)
	return nil
}

// CancelDelete abandons a pending delete and returns to the previous state.
func (c *Controller) CancelDelete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if st := c.State(); st != PendingDelete {
		return &StateError{Command: "cancel-delete", State: st}
	}
	c.deleteID = ""
	c.setState(c.deleteFrom)
	return nil
}

// ConfirmDelete removes the appointment chosen by RequestDelete and closes
// the editor. On a store failure the delete stays pending.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	if st := c.State(); st != PendingDelete {
		return &StateError{Command: "confirm-delete", State: st}
	}

	ctx, span := c.tracer.Start(ctx, "session.ConfirmDelete", trace.WithAttributes(attribute.String("appointment.id", c.deleteID)))
	defer span.End()

	id := c.deleteID
	if err := c.store.Delete(ctx, model.Appointments, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		serr := &StoreError{Op: "delete", Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete")
		c.logger.Error("appointment delete failed", "appointment_id", id, "err", err)
		c.emit(Event{Kind: EventFailed, Err: serr})
		return serr
	}

	c.deleteID = ""
	c.draft = Draft{}
	c.newApptID = ""
	c.setState(Closed)
	c.logger.Info("appointment deleted", "appointment_id", id)
	c.emit(Event{Kind: EventDeleted, AppointmentID: id})
	return nil
}

// Move reschedules an appointment to slot on day without opening the editor.
// On conflict or store failure the stored appointment is left as it was.
func (c *Controller) Move(ctx context.Context, id string, day time.Time, slot model.TimeOfDay) (model.Appointment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	ctx, span := c.tracer.Start(ctx, "session.Move", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer span.End()

	snap := c.source.Snapshot()
	orig, ok := snap.Appointment(id)
	if !ok {
		return model.Appointment{}, &ValidationError{Fields: []string{"id"}, Reason: "appointment not found"}
	}
	candidate := orig
	candidate.Start = slot.On(model.Naive(day))

	// The editor state is restored afterwards; a move never opens or closes it.
	prev := c.State()
	defer c.setState(prev)

	c.setState(ConflictChecking)
	if existing, ok := conflict.FindConflict(candidate, snap.Appointments, candidate.ID); ok {
		span.SetStatus(codes.Error, "conflict")
		return model.Appointment{}, c.conflictDetected(snap, candidate, existing)
	}
	c.setState(Committing)
	if err := c.commit(ctx, snap, candidate, "move"); err != nil {
		span.SetStatus(codes.Error, "commit")
		return model.Appointment{}, err
	}
	if c.draft.ID == id {
		c.draft.Start = candidate.Start
	}
	c.logger.Info("appointment moved", "appointment_id", id, "from", orig.Start, "to", candidate.Start)
	c.emit(Event{Kind: EventCommitted, Appointment: &candidate})
	return candidate, nil
}

func (c *Controller) emit(e Event) {
	if c.sink == nil {
		return
	}
	e.SessionID = c.id
	e.At = c.now()
	c.sink(e)
}
