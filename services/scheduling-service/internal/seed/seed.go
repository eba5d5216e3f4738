// Package seed provides the demo salon used for local runs and first starts.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
)

func Services() []model.Service {
	return []model.Service{
		{ID: "service-1", Name: "Pánsky Strih", DurationMinutes: 45, Price: 20, Description: "Umytie vlasov / Strih (nožnice/strojček) / Umytie vlasov / Styling."},
		{ID: "service-2", Name: "Pánsky strih + Úprava brady", DurationMinutes: 60, Price: 25, Description: "Umytie vlasov / Strih / Úprava brady / Umytie vlasov a brady / Styling / Dezinfekcia po holení."},
		{ID: "service-3", Name: "Dámske Strihanie", DurationMinutes: 90, Price: 30, Description: "Umytie vlasov / Strih / Vyfúkanie vlasov / Finálny styling."},
		{ID: "service-4", Name: "Jednoduché Farbenie", DurationMinutes: 120, Price: 40, Description: "Farbenie korienkov / Vyfúkanie vlasov / Finálny Styling."},
		{ID: "service-5", Name: "Zmena Farby Vlasov", DurationMinutes: 240, Price: 130, Description: "Rôzne techniky zosvetľovania (Melír, AirTouch, Balleyage) vrátane strihu a stylingu."},
	}
}

func Stylists() []model.Stylist {
	return []model.Stylist{
		{ID: "stylist-1", Name: "Papi", Color: "bg-sky-200 dark:bg-sky-800"},
		{ID: "stylist-2", Name: "Maťo", Color: "bg-amber-200 dark:bg-amber-800"},
		{ID: "stylist-3", Name: "Miška", Color: "bg-rose-200 dark:bg-rose-800"},
	}
}

func Customers() []model.Customer {
	return []model.Customer{
		{ID: "customer-1", Name: "Zuzana Vzorová", Email: "zuzana.vzorova@email.com", Phone: "0901 123 456"},
		{ID: "customer-2", Name: "Peter Novák", Email: "peter.novak@email.com", Phone: "0902 234 567"},
		{ID: "customer-3", Name: "Eva Krátka", Email: "eva.kratka@email.com", Phone: "0903 345 678"},
		{ID: "customer-4", Name: "Martin Dlhý", Email: "martin.dlhy@email.com", Phone: "0904 456 789"},
	}
}

// Appointments places the demo bookings around today's date.
func Appointments(today time.Time) []model.Appointment {
	day := model.Day(model.Naive(today))
	services := map[string]model.Service{}
	for _, s := range Services() {
		services[s.ID] = s
	}
	customers := map[string]model.Customer{}
	for _, c := range Customers() {
		customers[c.ID] = c
	}

	rows := []struct {
		id, customer, service, stylist string
		dayOffset, hour                int
	}{
		{"booking-1", "customer-1", "service-3", "stylist-3", 0, 10},
		{"booking-2", "customer-2", "service-1", "stylist-2", 1, 14},
		{"booking-3", "customer-3", "service-4", "stylist-1", 0, 12},
		{"booking-4", "customer-4", "service-2", "stylist-1", 0, 16},
		{"booking-5", "customer-1", "service-5", "stylist-2", -1, 11},
	}
	out := make([]model.Appointment, 0, len(rows))
	for _, r := range rows {
		svc := services[r.service]
		out = append(out, model.Appointment{
			ID:              r.id,
			CustomerID:      r.customer,
			CustomerName:    customers[r.customer].Name,
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			StylistID:       r.stylist,
			Start:           day.AddDate(0, 0, r.dayOffset).Add(time.Duration(r.hour) * time.Hour),
			DurationMinutes: svc.DurationMinutes,
		})
	}
	return out
}

// Load writes the demo data into s. With onlyIfEmpty it does nothing when
// the store already holds records.
func Load(ctx context.Context, s store.Store, today time.Time, onlyIfEmpty bool, logger *slog.Logger) (bool, error) {
	if onlyIfEmpty {
		empty, err := store.IsEmpty(ctx, s)
		if err != nil {
			return false, err
		}
		if !empty {
			return false, nil
		}
	}

	for _, v := range Services() {
		if err := s.UpsertService(ctx, v); err != nil {
			return false, fmt.Errorf("seed service %s: %w", v.ID, err)
		}
	}
	for _, v := range Stylists() {
		if err := s.UpsertStylist(ctx, v); err != nil {
			return false, fmt.Errorf("seed stylist %s: %w", v.ID, err)
		}
	}
	for _, v := range Customers() {
		if err := s.UpsertCustomer(ctx, v); err != nil {
			return false, fmt.Errorf("seed customer %s: %w", v.ID, err)
		}
	}
	appts := Appointments(today)
	for _, v := range appts {
		if err := s.UpsertAppointment(ctx, v); err != nil {
			return false, fmt.Errorf("seed appointment %s: %w", v.ID, err)
		}
	}
	if logger != nil {
		logger.Info("demo data loaded", "appointments", len(appts))
	}
	return true, nil
}
