package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/session"
)

// Registry holds the open editor sessions, one controller per client editor.
type Registry struct {
	source    session.SnapshotSource
	committer session.Committer
	logger    *slog.Logger
	events    *session.Recorder
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session.Controller
}

func NewRegistry(source session.SnapshotSource, committer session.Committer, events *session.Recorder, logger *slog.Logger, now func() time.Time) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		source:    source,
		committer: committer,
		logger:    logger,
		events:    events,
		now:       now,
		sessions:  make(map[string]*session.Controller),
	}
}

// Open creates and registers a new controller.
func (r *Registry) Open() *session.Controller {
	c := r.controller()
	r.mu.Lock()
	r.sessions[c.ID()] = c
	r.mu.Unlock()
	return c
}

// Transient returns an unregistered controller for one-shot commands such as drag-moves.
func (r *Registry) Transient() *session.Controller {
	return r.controller()
}

func (r *Registry) controller() *session.Controller {
	opts := []session.Option{session.WithLogger(r.logger), session.WithClock(r.now)}
	if r.events != nil {
		opts = append(opts, session.WithEvents(r.events.Record))
	}
	return session.New(r.source, r.committer, opts...)
}

func (r *Registry) Get(id string) (*session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	return c, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// PurgeIdle drops sessions that have not received a command for maxIdle.
// Sessions in the middle of a commit are kept.
func (r *Registry) PurgeIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id, c := range r.sessions {
		if !c.LastActive().Before(cutoff) {
			continue
		}
		switch c.State() {
		case session.Validating, session.ConflictChecking, session.Committing:
			continue
		}
		delete(r.sessions, id)
		purged++
	}
	if purged > 0 {
		r.logger.Info("idle sessions purged", "count", purged, "remaining", len(r.sessions))
	}
	return purged
}
