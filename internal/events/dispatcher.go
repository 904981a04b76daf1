// Package events distributes pipeline notifications to UI-facing
// observers. The pipeline pushes; observers never drive it.
package events

import (
	"log"
	"sync"
)

// Event types pushed by the pipeline.
const (
	TypeDropsUpdated    = "drops:updated"
	TypeSnapshotCreated = "snapshot:created"
	TypeSnapshotReused  = "snapshot:reused"
	TypeRefreshStarted  = "refresh:started"
	TypeRefreshStopped  = "refresh:stopped"
	TypeProcessLiveness = "process:liveness"
)

// Event is one notification pushed to observers.
type Event struct {
	// Type is one of the Type* constants.
	Type string

	// Payload carries the typed message for this event type, one of
	// the structs in messages.go.
	Payload any
}

// Observer receives dispatched events. Implementations decide how to
// surface them (frontend bridge, console, test capture).
type Observer interface {
	// OnEvent handles one event. Errors are logged, not propagated.
	OnEvent(event Event) error

	// Name identifies the observer in logs.
	Name() string

	// ShouldHandle filters which event types the observer receives.
	ShouldHandle(eventType string) bool
}

// Dispatcher fans events out to registered observers. Safe for
// concurrent use; observers are notified sequentially in registration
// order.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds an observer.
func (d *Dispatcher) Register(obs Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, obs)
	log.Printf("[Dispatcher] Registered observer: %s", obs.Name())
}

// Unregister removes an observer; it receives no further events.
func (d *Dispatcher) Unregister(obs Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.observers {
		if o == obs {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			log.Printf("[Dispatcher] Unregistered observer: %s", obs.Name())
			return
		}
	}
}

// Dispatch delivers an event to every observer whose filter accepts it.
// An observer failure is logged and delivery continues.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, obs := range observers {
		if !obs.ShouldHandle(event.Type) {
			continue
		}
		if err := obs.OnEvent(event); err != nil {
			log.Printf("[Dispatcher] Observer %s failed on %s: %v", obs.Name(), event.Type, err)
		}
	}
}

// ObserverCount returns the number of registered observers.
func (d *Dispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}
