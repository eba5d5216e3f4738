// Package changes fans out "collection changed" signals to subscribers.
package changes

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/salonbook/services/scheduling-service/internal/model"
)

// Notifier delivers change signals. Callbacks must not block.
type Notifier interface {
	Publish(ctx context.Context, c model.Collection) error
	Subscribe(c model.Collection, onChange func()) (unsubscribe func())
}

// Local delivers signals within the process.
type Local struct {
	mu     sync.Mutex
	nextID int
	subs   map[model.Collection]map[int]func()
}

func NewLocal() *Local {
	return &Local{subs: make(map[model.Collection]map[int]func())}
}

func (l *Local) Publish(_ context.Context, c model.Collection) error {
	l.dispatch(c)
	return nil
}

func (l *Local) Subscribe(c model.Collection, onChange func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[c] == nil {
		l.subs[c] = make(map[int]func())
	}
	id := l.nextID
	l.nextID++
	l.subs[c][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[c], id)
		})
	}
}

func (l *Local) dispatch(c model.Collection) {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.subs[c]))
	for _, fn := range l.subs[c] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
