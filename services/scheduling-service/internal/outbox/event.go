package outbox

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateAppointment = "appointment"

	TopicAppointmentCommitted = "salon.appointment.committed.v1"
	TopicAppointmentDeleted   = "salon.appointment.deleted.v1"
)

type AppointmentCommitted struct {
	Appointment model.Appointment `json:"appointment"`
	End         time.Time         `json:"end"`
	CommittedAt time.Time         `json:"committed_at"`
}

type AppointmentDeleted struct {
	AppointmentID string    `json:"appointment_id"`
	StylistID     string    `json:"stylist_id"`
	Start         time.Time `json:"start"`
	DeletedAt     time.Time `json:"deleted_at"`
}

func Committed(a model.Appointment, at time.Time) (Event, error) {
	payload, err := json.Marshal(AppointmentCommitted{Appointment: a, End: a.End(), CommittedAt: at.UTC()})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   a.ID,
		EventType:     TopicAppointmentCommitted,
		Payload:       payload,
	}, nil
}

func Deleted(a model.Appointment, at time.Time) (Event, error) {
	payload, err := json.Marshal(AppointmentDeleted{AppointmentID: a.ID, StylistID: a.StylistID, Start: a.Start, DeletedAt: at.UTC()})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateAppointment,
		AggregateID:   a.ID,
		EventType:     TopicAppointmentDeleted,
		Payload:       payload,
	}, nil
}
