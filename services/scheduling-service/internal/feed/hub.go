package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/store"
	"github.com/robfig/cron/v3"
)

// Hub keeps the latest snapshot of a store. Every store change triggers a
// full re-read; an optional cron schedule forces periodic resyncs so a lost
// change signal cannot leave the snapshot stale for long.
type Hub struct {
	store  store.Store
	logger *slog.Logger
	feed   *Feed[loaded]
	cron   *cron.Cron
	loads  atomic.Uint64

	mu       sync.RWMutex
	snapshot model.Snapshot
	version  uint64
	applied  uint64 // seq of the load behind snapshot
	watchers map[int]func(model.Snapshot)
	nextID   int
}

func NewHub(s store.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{store: s, logger: logger, watchers: make(map[int]func(model.Snapshot))}
	h.feed = New(h.load, h.subscribeAll, logger)
	return h
}

// loaded is a snapshot tagged with the order in which its read began.
type loaded struct {
	seq  uint64
	snap model.Snapshot
}

func (h *Hub) load(ctx context.Context) (loaded, error) {
	seq := h.loads.Add(1)
	snap, err := store.LoadSnapshot(ctx, h.store)
	return loaded{seq: seq, snap: snap}, err
}

func (h *Hub) subscribeAll(onChange func()) func() {
	unsubs := make([]func(), 0, len(model.Collections))
	for _, c := range model.Collections {
		unsubs = append(unsubs, h.store.Subscribe(c, onChange))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Start loads the first snapshot and keeps the hub current until Stop.
// resyncSpec is a cron expression; empty disables periodic resync.
func (h *Hub) Start(ctx context.Context, resyncSpec string) error {
	ch, err := h.feed.Start(ctx)
	if err != nil {
		return err
	}
	h.apply(<-ch)

	if resyncSpec != "" {
		c := cron.New()
		if _, err := c.AddFunc(resyncSpec, h.feed.Refresh); err != nil {
			h.feed.Stop()
			return err
		}
		c.Start()
		h.cron = c
	}

	go func() {
		for l := range ch {
			h.apply(l)
		}
	}()
	return nil
}

func (h *Hub) Stop() {
	if h.cron != nil {
		<-h.cron.Stop().Done()
	}
	h.feed.Stop()
}

// Sync re-reads the store immediately, for callers that must observe their own write.
func (h *Hub) Sync(ctx context.Context) error {
	l, err := h.load(ctx)
	if err != nil {
		return err
	}
	h.apply(l)
	return nil
}

func (h *Hub) Snapshot() model.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// Version increases with every applied snapshot.
func (h *Hub) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// Watch calls fn with every new snapshot. fn must not block.
func (h *Hub) Watch(fn func(model.Snapshot)) (unwatch func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

// apply installs l unless a read that began later has already been applied,
// so a slow reload never replaces a newer snapshot.
func (h *Hub) apply(l loaded) {
	h.mu.Lock()
	if applied := h.applied; l.seq <= applied {
		h.mu.Unlock()
		h.logger.Debug("stale snapshot dropped", "seq", l.seq, "applied", applied)
		return
	}
	snap := l.snap
	h.applied = l.seq
	h.snapshot = snap
	h.version++
	fns := make([]func(model.Snapshot), 0, len(h.watchers))
	for _, fn := range h.watchers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	h.logger.Debug("snapshot applied",
		"services", len(snap.Services),
		"stylists", len(snap.Stylists),
		"customers", len(snap.Customers),
		"appointments", len(snap.Appointments),
	)
	for _, fn := range fns {
		fn(snap)
	}
}
