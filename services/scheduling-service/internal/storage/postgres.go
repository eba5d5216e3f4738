// Package storage is the Postgres implementation of store.Store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/changes"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	notifier changes.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

var _ store.Store = (*Postgres)(nil)

func NewPostgres(pool *db.Pool, notifier changes.Notifier, logger *slog.Logger) *Postgres {
	if notifier == nil {
		notifier = changes.NewLocal()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{
		pool:     pool,
		outbox:   outbox.NewRepository(),
		notifier: notifier,
		logger:   logger,
		tracer:   otelx.Tracer("storage"),
		now:      time.Now,
	}
}

func (p *Postgres) Services(ctx context.Context) ([]model.Service, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, duration_minutes, price::float8, description
		FROM services
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Service, error) {
		var s model.Service
		err := row.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price, &s.Description)
		return s, err
	})
}

func (p *Postgres) Stylists(ctx context.Context) ([]model.Stylist, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, color FROM stylists ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Stylist, error) {
		var s model.Stylist
		err := row.Scan(&s.ID, &s.Name, &s.Color)
		return s, err
	})
}

func (p *Postgres) Customers(ctx context.Context) ([]model.Customer, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, email, phone FROM customers ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Customer, error) {
		var c model.Customer
		err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
		return c, err
	})
}

const appointmentColumns = `id, customer_id, customer_name, service_id, service_name, stylist_id, start_time, duration_minutes`

func scanAppointment(row pgx.CollectableRow) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.CustomerID, &a.CustomerName, &a.ServiceID, &a.ServiceName, &a.StylistID, &a.Start, &a.DurationMinutes)
	a.Start = model.Naive(a.Start)
	return a, err
}

func (p *Postgres) Appointments(ctx context.Context) ([]model.Appointment, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAppointment)
}

func (p *Postgres) UpsertService(ctx context.Context, s model.Service) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			price = EXCLUDED.price,
			description = EXCLUDED.description,
			updated_at = now()
	`, s.ID, s.Name, s.DurationMinutes, s.Price, s.Description)
	if err != nil {
		return err
	}
	p.publish(ctx, model.Services)
	return nil
}

func (p *Postgres) UpsertStylist(ctx context.Context, s model.Stylist) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO stylists (id, name, color)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			color = EXCLUDED.color,
			updated_at = now()
	`, s.ID, s.Name, s.Color)
	if err != nil {
		return err
	}
	p.publish(ctx, model.Stylists)
	return nil
}

func (p *Postgres) UpsertCustomer(ctx context.Context, c model.Customer) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			updated_at = now()
	`, c.ID, c.Name, c.Email, c.Phone)
	if err != nil {
		return err
	}
	p.publish(ctx, model.Customers)
	return nil
}

// UpsertAppointment writes a inside a transaction holding the stylist's
// advisory lock and re-checks the stylist's schedule against committed rows.
// The committed event is queued in the outbox within the same transaction.
func (p *Postgres) UpsertAppointment(ctx context.Context, a model.Appointment) error {
	ctx, span := p.tracer.Start(ctx, "storage.UpsertAppointment", trace.WithAttributes(
		attribute.String("appointment.id", a.ID),
		attribute.String("stylist.id", a.StylistID),
	))
	defer span.End()

	a.Start = model.Naive(a.Start)
	err := p.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.StylistID); err != nil {
			return fmt.Errorf("lock stylist: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE stylist_id = $1
				AND id <> $2
				AND start_time < $4
				AND start_time + make_interval(mins => duration_minutes) > $3
			ORDER BY start_time
		`, a.StylistID, a.ID, a.Start, a.End())
		if err != nil {
			return err
		}
		overlapping, err := pgx.CollectRows(rows, scanAppointment)
		if err != nil {
			return err
		}
		if existing, ok := conflict.FindConflict(a, overlapping, a.ID); ok {
			return &store.ConflictError{Existing: existing}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, customer_id, customer_name, service_id, service_name, stylist_id, start_time, duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				customer_id = EXCLUDED.customer_id,
				customer_name = EXCLUDED.customer_name,
				service_id = EXCLUDED.service_id,
				service_name = EXCLUDED.service_name,
				stylist_id = EXCLUDED.stylist_id,
				start_time = EXCLUDED.start_time,
				duration_minutes = EXCLUDED.duration_minutes,
				updated_at = now()
		`, a.ID, a.CustomerID, a.CustomerName, a.ServiceID, a.ServiceName, a.StylistID, a.Start, a.DurationMinutes); err != nil {
			return err
		}

		evt, err := outbox.Committed(a, p.now())
		if err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	p.publish(ctx, model.Appointments)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, c model.Collection, id string) error {
	if c == model.Appointments {
		return p.deleteAppointment(ctx, id)
	}

	var table string
	switch c {
	case model.Services:
		table = "services"
	case model.Stylists:
		table = "stylists"
	case model.Customers:
		table = "customers"
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	p.publish(ctx, c)
	return nil
}

func (p *Postgres) deleteAppointment(ctx context.Context, id string) error {
	err := p.pool.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentColumns, id)
		if err != nil {
			return err
		}
		a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		evt, err := outbox.Deleted(a, p.now())
		if err != nil {
			return err
		}
		return p.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return err
	}
	p.publish(ctx, model.Appointments)
	return nil
}

func (p *Postgres) Subscribe(c model.Collection, onChange func()) func() {
	return p.notifier.Subscribe(c, onChange)
}

// publish signals subscribers after a committed write. A failed signal does
// not undo the write; the periodic resync picks the change up instead.
func (p *Postgres) publish(ctx context.Context, c model.Collection) {
	if err := p.notifier.Publish(ctx, c); err != nil {
		p.logger.Warn("change notification failed", "collection", c, "err", err)
	}
}
