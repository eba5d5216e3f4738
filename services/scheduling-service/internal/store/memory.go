package store

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/changes"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

// Memory is a process-local Store. Records are returned in insertion order.
type Memory struct {
	mu           sync.RWMutex
	services     []model.Service
	stylists     []model.Stylist
	customers    []model.Customer
	appointments []model.Appointment
	notifier     changes.Notifier
}

// NewMemory returns an empty store. A nil notifier gets a local one.
func NewMemory(notifier changes.Notifier) *Memory {
	if notifier == nil {
		notifier = changes.NewLocal()
	}
	return &Memory{notifier: notifier}
}

func (m *Memory) Services(context.Context) ([]model.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Service(nil), m.services...), nil
}

func (m *Memory) Stylists(context.Context) ([]model.Stylist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Stylist(nil), m.stylists...), nil
}

func (m *Memory) Customers(context.Context) ([]model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Customer(nil), m.customers...), nil
}

func (m *Memory) Appointments(context.Context) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Appointment(nil), m.appointments...), nil
}

func (m *Memory) UpsertService(ctx context.Context, s model.Service) error {
	m.mu.Lock()
	m.services = upsert(m.services, s, func(v model.Service) string { return v.ID })
	m.mu.Unlock()
	return m.notifier.Publish(ctx, model.Services)
}

func (m *Memory) UpsertStylist(ctx context.Context, s model.Stylist) error {
	m.mu.Lock()
	m.stylists = upsert(m.stylists, s, func(v model.Stylist) string { return v.ID })
	m.mu.Unlock()
	return m.notifier.Publish(ctx, model.Stylists)
}

func (m *Memory) UpsertCustomer(ctx context.Context, c model.Customer) error {
	m.mu.Lock()
	m.customers = upsert(m.customers, c, func(v model.Customer) string { return v.ID })
	m.mu.Unlock()
	return m.notifier.Publish(ctx, model.Customers)
}

// UpsertAppointment re-checks the stylist's schedule under the write lock,
// so two racing commits cannot both land on overlapping times.
func (m *Memory) UpsertAppointment(ctx context.Context, a model.Appointment) error {
	a.Start = model.Naive(a.Start)
	m.mu.Lock()
	if existing, ok := conflict.FindConflict(a, m.appointments, a.ID); ok {
		m.mu.Unlock()
		return &ConflictError{Existing: existing}
	}
	m.appointments = upsert(m.appointments, a, func(v model.Appointment) string { return v.ID })
	m.mu.Unlock()
	return m.notifier.Publish(ctx, model.Appointments)
}

func (m *Memory) Delete(ctx context.Context, c model.Collection, id string) error {
	m.mu.Lock()
	var found bool
	switch c {
	case model.Services:
		m.services, found = remove(m.services, id, func(v model.Service) string { return v.ID })
	case model.Stylists:
		m.stylists, found = remove(m.stylists, id, func(v model.Stylist) string { return v.ID })
	case model.Customers:
		m.customers, found = remove(m.customers, id, func(v model.Customer) string { return v.ID })
	case model.Appointments:
		m.appointments, found = remove(m.appointments, id, func(v model.Appointment) string { return v.ID })
	}
	m.mu.Unlock()
	if !found {
		return ErrNotFound
	}
	return m.notifier.Publish(ctx, c)
}

func (m *Memory) Subscribe(c model.Collection, onChange func()) func() {
	return m.notifier.Subscribe(c, onChange)
}

func upsert[T any](list []T, v T, id func(T) string) []T {
	for i := range list {
		if id(list[i]) == id(v) {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func remove[T any](list []T, target string, id func(T) string) ([]T, bool) {
	for i := range list {
		if id(list[i]) == target {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
