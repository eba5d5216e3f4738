package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
)

// Snapshots is the read side shared by the handlers: the held snapshot and
// an explicit re-read after a write.
type Snapshots interface {
	session.SnapshotSource
	Sync(ctx context.Context) error
}

// CatalogHandler manages services, stylists and customers.
type CatalogHandler struct {
	store     store.Store
	snapshots Snapshots
	logger    *slog.Logger
}

func NewCatalogHandler(s store.Store, snapshots Snapshots, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{store: s, snapshots: snapshots, logger: logger}
}

func (h *CatalogHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"services": nonNil(h.snapshots.Snapshot().Services)})
	})
	saveService := upsertHandler(h, model.Services,
		func(s *model.Service) *string { return &s.ID },
		h.store.UpsertService)
	mux.HandleFunc("POST /api/v1/services", saveService)
	mux.HandleFunc("PUT /api/v1/services/{id}", saveService)
	mux.HandleFunc("DELETE /api/v1/services/{id}", h.deleteHandler(model.Services))

	mux.HandleFunc("GET /api/v1/stylists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"stylists": nonNil(h.snapshots.Snapshot().Stylists)})
	})
	saveStylist := upsertHandler(h, model.Stylists,
		func(s *model.Stylist) *string { return &s.ID },
		h.store.UpsertStylist)
	mux.HandleFunc("POST /api/v1/stylists", saveStylist)
	mux.HandleFunc("PUT /api/v1/stylists/{id}", saveStylist)
	mux.HandleFunc("DELETE /api/v1/stylists/{id}", h.deleteHandler(model.Stylists))

	mux.HandleFunc("GET /api/v1/customers", h.listCustomers)
	saveCustomer := upsertHandler(h, model.Customers,
		func(c *model.Customer) *string { return &c.ID },
		h.store.UpsertCustomer)
	mux.HandleFunc("POST /api/v1/customers", saveCustomer)
	mux.HandleFunc("PUT /api/v1/customers/{id}", saveCustomer)
	mux.HandleFunc("DELETE /api/v1/customers/{id}", h.deleteHandler(model.Customers))
}

// listCustomers returns every customer with visit count and lifetime spend.
func (h *CatalogHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshots.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": model.Stats(snap.Customers, snap.Appointments, snap.Services),
	})
}

type validatable interface {
	Validate() error
}

// upsertHandler decodes a T, takes its ID from the path (PUT) or the body,
// generating one when both are empty, validates and saves it.
func upsertHandler[T validatable](h *CatalogHandler, c model.Collection, idOf func(*T) *string, save func(context.Context, T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v T
		if !decodeJSON(w, r, &v) {
			return
		}
		id := idOf(&v)
		if pathID := strings.TrimSpace(r.PathValue("id")); pathID != "" {
			*id = pathID
		}
		*id = strings.TrimSpace(*id)
		if *id == "" {
			*id = uuid.NewString()
		}
		if err := v.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
			return
		}

		ctx := r.Context()
		if err := save(ctx, v); err != nil {
			h.logger.Error("catalog write failed", "collection", c, "id", *id, "err", err)
			writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "failed to save "+string(c))
			return
		}
		h.sync(ctx)

		status := http.StatusOK
		if r.Method == http.MethodPost {
			status = http.StatusCreated
		}
		writeJSON(w, status, v)
	}
}

func (h *CatalogHandler) deleteHandler(c model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.PathValue("id"))
		ctx := r.Context()
		if err := h.store.Delete(ctx, c, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, codeNotFound, string(c)+" not found")
				return
			}
			h.logger.Error("catalog delete failed", "collection", c, "id", id, "err", err)
			writeError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "failed to delete")
			return
		}
		h.sync(ctx)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *CatalogHandler) sync(ctx context.Context) {
	if err := h.snapshots.Sync(ctx); err != nil {
		h.logger.Warn("snapshot sync after write failed", "err", err)
	}
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
