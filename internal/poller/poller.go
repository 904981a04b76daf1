// Package poller provides a generic edge-triggered polling engine.
// An Engine repeatedly asks an oracle function for a value and turns the
// observed values into data/started/stopped notifications, firing edge
// notifications only when the activity predicate flips between two changed
// observations.
package poller

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Config holds configuration for an Engine.
type Config[T any] struct {
	// Interval is how often to poll the oracle.
	// Default: 2 seconds
	Interval time.Duration

	// Poll is the oracle function. Required.
	Poll func(ctx context.Context) (T, error)

	// IsActive is the activity predicate evaluated on each changed
	// observation. Required.
	IsActive func(state T) bool

	// HasChanged reports whether the new observation differs from the
	// previous one. prev is nil for the first observation.
	// Default: reflect.DeepEqual inequality.
	HasChanged func(prev *T, curr T) bool

	// OnData is called with every successful observation.
	OnData func(state T)

	// OnStarted is called on an inactive-to-active edge.
	OnStarted func(state T)

	// OnStopped is called on an active-to-inactive edge with the last
	// state observed before the edge.
	OnStopped func(previous T)

	// OnError is called when Poll fails. The previous observation and
	// the activity flag are left untouched and polling continues.
	OnError func(err error)
}

// Engine is a generic edge-triggered poller. It is safe for concurrent
// use; callbacks are invoked sequentially from the polling goroutine.
type Engine[T any] struct {
	cfg Config[T]

	mu       sync.Mutex
	previous *T
	active   bool
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	tickMu  sync.Mutex
	ticking bool
}

// New creates a new Engine from the given configuration.
func New[T any](cfg Config[T]) (*Engine[T], error) {
	if cfg.Poll == nil {
		return nil, fmt.Errorf("poll function cannot be nil")
	}
	if cfg.IsActive == nil {
		return nil, fmt.Errorf("activity predicate cannot be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.HasChanged == nil {
		cfg.HasChanged = func(prev *T, curr T) bool {
			if prev == nil {
				return true
			}
			return !reflect.DeepEqual(*prev, curr)
		}
	}
	return &Engine[T]{cfg: cfg}, nil
}

// Start begins polling. It is idempotent: an already running engine is
// stopped first, so the timer is never doubled. One poll fires
// immediately, then polling continues at the configured interval.
func (e *Engine[T]) Start() {
	e.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go e.run(ctx, done)
}

// Stop halts polling. It is safe to call at any time, including before
// Start and twice in a row. After Stop returns no further callback fires
// from this engine. The last observed value is left in place.
func (e *Engine[T]) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the engine is currently polling.
func (e *Engine[T]) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Last returns the last successful observation, if any.
func (e *Engine[T]) Last() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.previous == nil {
		var zero T
		return zero, false
	}
	return *e.previous, true
}

// run is the polling loop. It fires one immediate tick, then ticks at
// the configured interval until the context is cancelled.
func (e *Engine[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	e.tick(ctx)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick performs one poll. A tick that would overlap a still-running
// poll is skipped rather than queued.
func (e *Engine[T]) tick(ctx context.Context) {
	e.tickMu.Lock()
	if e.ticking {
		e.tickMu.Unlock()
		return
	}
	e.ticking = true
	e.tickMu.Unlock()

	defer func() {
		e.tickMu.Lock()
		e.ticking = false
		e.tickMu.Unlock()
	}()

	curr, err := e.cfg.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil && e.cfg.OnError != nil {
			e.cfg.OnError(err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	if e.cfg.OnData != nil {
		e.cfg.OnData(curr)
	}

	e.mu.Lock()
	prev := e.previous
	wasActive := e.active
	changed := e.cfg.HasChanged(prev, curr)
	var edge func(T)
	var edgeArg T
	if changed {
		nowActive := e.cfg.IsActive(curr)
		if nowActive != wasActive {
			if nowActive {
				edge = e.cfg.OnStarted
				edgeArg = curr
			} else {
				edge = e.cfg.OnStopped
				edgeArg = curr
				if prev != nil {
					edgeArg = *prev
				}
			}
		}
		e.active = nowActive
		c := curr
		e.previous = &c
	}
	e.mu.Unlock()

	if edge != nil {
		edge(edgeArg)
	}
}
