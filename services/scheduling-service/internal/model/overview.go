package model

import (
	"sort"
	"time"
)

// DefaultRecent is how many appointments Overview lists when asked for none.
const DefaultRecent = 5

// Overview is the dashboard read model. Every figure is derived from the
// appointment set on each call; nothing is stored.
type Overview struct {
	TotalRevenue      float64          `json:"total_revenue"`
	MonthAppointments int              `json:"month_appointments"`
	Monthly           [12]MonthRevenue `json:"monthly"`
	Recent            []RecentVisit    `json:"recent"`
}

// MonthRevenue sums revenue of one calendar month across all years.
type MonthRevenue struct {
	Month time.Month `json:"month"`
	Name  string     `json:"name"`
	Total float64    `json:"total"`
}

type RecentVisit struct {
	AppointmentID string    `json:"appointment_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	ServiceName   string    `json:"service_name"`
	Start         time.Time `json:"start"`
	Amount        float64   `json:"amount"`
}

// BuildOverview prices each appointment at its service's current price
// (0 when the service is gone), counts appointments starting in the month
// of now and lists the recent latest-starting appointments, newest first.
func BuildOverview(customers []Customer, appointments []Appointment, services []Service, now time.Time, recent int) Overview {
	if recent <= 0 {
		recent = DefaultRecent
	}
	prices := make(map[string]float64, len(services))
	for _, s := range services {
		prices[s.ID] = s.Price
	}

	var ov Overview
	for i := range ov.Monthly {
		m := time.Month(i + 1)
		ov.Monthly[i] = MonthRevenue{Month: m, Name: m.String()[:3]}
	}
	for _, a := range appointments {
		price := prices[a.ServiceID]
		ov.TotalRevenue += price
		ov.Monthly[a.Start.Month()-1].Total += price
		if a.Start.Year() == now.Year() && a.Start.Month() == now.Month() {
			ov.MonthAppointments++
		}
	}

	sorted := append([]Appointment(nil), appointments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.After(sorted[j].Start) })
	if len(sorted) > recent {
		sorted = sorted[:recent]
	}
	byID := make(map[string]Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	ov.Recent = make([]RecentVisit, 0, len(sorted))
	for _, a := range sorted {
		v := RecentVisit{
			AppointmentID: a.ID,
			CustomerName:  a.CustomerName,
			ServiceName:   a.ServiceName,
			Start:         a.Start,
			Amount:        prices[a.ServiceID],
		}
		if c, ok := byID[a.CustomerID]; ok {
			v.CustomerName = c.Name
			v.CustomerEmail = c.Email
		}
		ov.Recent = append(ov.Recent, v)
	}
	return ov
}
