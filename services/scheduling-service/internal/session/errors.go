package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("scheduling conflict")
	ErrStore        = errors.New("store unavailable")
	ErrInvalidState = errors.New("command not allowed in current state")
)

// ValidationError lists draft fields that are missing or reference unknown records.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError names the stylist who is already busy.
type ConflictError struct {
	StylistID   string
	StylistName string
	Existing    model.Appointment
}

func (e *ConflictError) Error() string {
	name := e.StylistName
	if name == "" {
		name = e.StylistID
	}
	return fmt.Sprintf("stylist %s is already booked at this time", name)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StoreError wraps a failed commit, delete or read.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

type StateError struct {
	Command string
	State   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s while %s", ErrInvalidState, e.Command, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }
