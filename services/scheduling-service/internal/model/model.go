package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Service struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Description     string  `json:"description"`
}

func (s Service) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if s.DurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("service duration must be positive, got %d", s.DurationMinutes))
	}
	if s.Price < 0 {
		errs = append(errs, fmt.Errorf("service price must not be negative, got %.2f", s.Price))
	}
	return errors.Join(errs...)
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Stylist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s Stylist) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("stylist name is required")
	}
	return nil
}

// Customer holds contact data only. Visit count and spend are derived, see Stats.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("customer name is required")
	}
	return nil
}

// Appointment occupies [Start, Start+DurationMinutes) of one stylist.
// CustomerName and ServiceName are snapshots taken when the appointment was
// last written and are not refreshed when the referenced records change.
type Appointment struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	CustomerName    string    `json:"customer_name"`
	ServiceID       string    `json:"service_id"`
	ServiceName     string    `json:"service_name"`
	StylistID       string    `json:"stylist_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) Validate() error {
	var errs []error
	if a.ID == "" {
		errs = append(errs, errors.New("appointment id is required"))
	}
	if a.CustomerID == "" {
		errs = append(errs, errors.New("customer is required"))
	}
	if a.ServiceID == "" {
		errs = append(errs, errors.New("service is required"))
	}
	if a.StylistID == "" {
		errs = append(errs, errors.New("stylist is required"))
	}
	if a.Start.IsZero() {
		errs = append(errs, errors.New("start is required"))
	}
	if a.DurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %d", a.DurationMinutes))
	}
	return errors.Join(errs...)
}
