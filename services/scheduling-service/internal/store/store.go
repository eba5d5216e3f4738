// Package store defines the record store the scheduler reads from and commits to.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("appointment overlaps an existing appointment")
)

// ConflictError is returned by UpsertAppointment when the store's own
// re-check finds an overlapping appointment of the same stylist.
type ConflictError struct {
	Existing model.Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s at %s", ErrConflict, e.Existing.ID, e.Existing.Start.Format(model.WallClockLayout))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Store holds the services, stylists, customers and appointments collections.
// Upserts replace whole records by ID. Subscribe callbacks fire after a
// collection changed and must not block.
type Store interface {
	Services(ctx context.Context) ([]model.Service, error)
	Stylists(ctx context.Context) ([]model.Stylist, error)
	Customers(ctx context.Context) ([]model.Customer, error)
	Appointments(ctx context.Context) ([]model.Appointment, error)

	UpsertService(ctx context.Context, s model.Service) error
	UpsertStylist(ctx context.Context, s model.Stylist) error
	UpsertCustomer(ctx context.Context, c model.Customer) error
	UpsertAppointment(ctx context.Context, a model.Appointment) error
	Delete(ctx context.Context, c model.Collection, id string) error

	Subscribe(c model.Collection, onChange func()) (unsubscribe func())
}

// LoadSnapshot reads all four collections.
func LoadSnapshot(ctx context.Context, s Store) (model.Snapshot, error) {
	var (
		snap model.Snapshot
		err  error
	)
	if snap.Services, err = s.Services(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("read services: %w", err)
	}
	if snap.Stylists, err = s.Stylists(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("read stylists: %w", err)
	}
	if snap.Customers, err = s.Customers(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("read customers: %w", err)
	}
	if snap.Appointments, err = s.Appointments(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("read appointments: %w", err)
	}
	return snap, nil
}

// IsEmpty reports whether the store holds no records at all.
func IsEmpty(ctx context.Context, s Store) (bool, error) {
	snap, err := LoadSnapshot(ctx, s)
	if err != nil {
		return false, err
	}
	return len(snap.Services)+len(snap.Stylists)+len(snap.Customers)+len(snap.Appointments) == 0, nil
}
