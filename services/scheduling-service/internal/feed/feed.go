// Package feed turns a store's change signals into a stream of full snapshots.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type LoadFunc[T any] func(ctx context.Context) (T, error)

// SubscribeFunc registers onChange and returns its unsubscribe function.
type SubscribeFunc func(onChange func()) (unsubscribe func())

var ErrStarted = errors.New("feed already started")

// Feed reloads a full value every time its source signals a change and
// delivers it on a channel holding at most one pending value. A slow reader
// only ever sees the newest snapshot.
type Feed[T any] struct {
	load      LoadFunc[T]
	subscribe SubscribeFunc
	logger    *slog.Logger

	mu      sync.Mutex
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func New[T any](load LoadFunc[T], subscribe SubscribeFunc, logger *slog.Logger) *Feed[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed[T]{load: load, subscribe: subscribe, logger: logger}
}

// Start loads the first value synchronously and then streams reloads until
// Stop is called or ctx ends. The returned channel is closed on stop.
func (f *Feed[T]) Start(ctx context.Context) (<-chan T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil, ErrStarted
	}

	first, err := f.load(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	out <- first
	f.trigger = make(chan struct{}, 1)
	f.cancel = cancel
	f.done = make(chan struct{})

	var unsubscribe func()
	if f.subscribe != nil {
		unsubscribe = f.subscribe(f.Refresh)
	}
	go f.run(ctx, out, unsubscribe, f.trigger, f.done)
	return out, nil
}

// Refresh schedules a reload. Calls made while a reload is pending coalesce.
func (f *Feed[T]) Refresh() {
	f.mu.Lock()
	trigger := f.trigger
	f.mu.Unlock()
	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// Stop ends the stream and waits for the reload loop to exit.
func (f *Feed[T]) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.trigger, f.done = nil, nil, nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *Feed[T]) run(ctx context.Context, out chan T, unsubscribe func(), trigger <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer close(out)
	if unsubscribe != nil {
		defer unsubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
		}

		v, err := f.load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Error("feed reload failed", "err", err)
			}
			continue
		}
		select {
		case <-out:
		default:
		}
		out <- v
	}
}
