// Package process watches the OS process table for the game client.
package process

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/navali-creations/soothsayer-sub010/internal/poller"
)

// State is one observation of the game client's liveness.
type State struct {
	IsRunning   bool   `json:"isRunning"`
	ProcessName string `json:"processName"`
}

// WatcherConfig holds configuration for a Watcher.
type WatcherConfig struct {
	// ProcessNames are the executable names to look for. The first
	// configured name that matches a running process wins. Required.
	ProcessNames []string

	// Interval is how often to scan the process table.
	// Default: 5 seconds
	Interval time.Duration

	// OnChange is called when liveness flips in either direction.
	OnChange func(state State)

	// OnError is called when process enumeration fails. The scan is
	// retried on the next tick.
	OnError func(err error)
}

// Watcher polls the OS process table and reports liveness edges.
// Only the IsRunning field participates in change detection, so the
// matched executable name switching between ticks does not produce
// spurious edges.
type Watcher struct {
	engine *poller.Engine[State]
	names  []string
}

// NewWatcher creates a new process liveness watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if len(cfg.ProcessNames) == 0 {
		return nil, fmt.Errorf("process names cannot be empty")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	w := &Watcher{names: cfg.ProcessNames}

	engine, err := poller.New(poller.Config[State]{
		Interval: cfg.Interval,
		Poll:     w.scan,
		IsActive: func(s State) bool { return s.IsRunning },
		HasChanged: func(prev *State, curr State) bool {
			if prev == nil {
				return true
			}
			return prev.IsRunning != curr.IsRunning
		},
		OnStarted: cfg.OnChange,
		OnStopped: cfg.OnChange,
		OnError:   cfg.OnError,
	})
	if err != nil {
		return nil, fmt.Errorf("create poll engine: %w", err)
	}

	w.engine = engine
	return w, nil
}

// Start begins watching. Idempotent.
func (w *Watcher) Start() {
	w.engine.Start()
}

// Stop halts watching. Safe to call at any time.
func (w *Watcher) Stop() {
	w.engine.Stop()
}

// IsRunning reports the liveness from the last completed scan. It is a
// synchronous read for request/response callers, distinct from the
// OnChange push path.
func (w *Watcher) IsRunning() bool {
	last, ok := w.engine.Last()
	return ok && last.IsRunning
}

// scan walks the OS process table looking for any of the configured
// executable names. First configured name with a match wins.
func (w *Watcher) scan(ctx context.Context) (State, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return State{}, fmt.Errorf("enumerate processes: %w", err)
	}

	running := make(map[string]bool, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes exit between enumeration and inspection.
			continue
		}
		running[strings.ToLower(name)] = true
	}

	for _, want := range w.names {
		if running[strings.ToLower(want)] {
			return State{IsRunning: true, ProcessName: want}, nil
		}
	}

	return State{IsRunning: false, ProcessName: w.names[0]}, nil
}
