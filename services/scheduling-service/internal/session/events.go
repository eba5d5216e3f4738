package session

import (
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventConflict  EventKind = "conflict_detected"
	EventCommitted EventKind = "committed"
	EventDeleted   EventKind = "deleted"
	EventCancelled EventKind = "cancelled"
	EventFailed    EventKind = "failed"
)

type Event struct {
	Kind          EventKind          `json:"kind"`
	SessionID     string             `json:"session_id"`
	At            time.Time          `json:"at"`
	Draft         *Draft             `json:"draft,omitempty"`
	Appointment   *model.Appointment `json:"appointment,omitempty"`
	AppointmentID string             `json:"appointment_id,omitempty"`
	Err           error              `json:"-"`
	Message       string             `json:"message,omitempty"`
}

// Recorder keeps the most recent events, oldest first.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

// Record is a controller event sink.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Err != nil && e.Message == "" {
		e.Message = e.Err.Error()
	}
	r.events = append(r.events, e)
	if len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
