package logwatch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig holds configuration for a Watcher.
type WatcherConfig struct {
	// Path is the log file to watch. Required.
	Path string

	// TailLines is how many trailing lines each change reads.
	// Default: 10
	TailLines int

	// Debounce coalesces bursts of change notifications into at most
	// one tail read per window.
	// Default: 100 milliseconds
	Debounce time.Duration

	// OnChange receives the tailed text after each coalesced change.
	OnChange func(text string)

	// OnError receives watch and read failures. Watching continues.
	OnError func(err error)
}

// Watcher turns file system notifications for the log file into bounded
// tail reads. Each change reads only the last TailLines lines, so the
// per-event cost is independent of total log size. If more than
// TailLines lines arrive inside one debounce window the excess is never
// seen; that bound is deliberate and callers must not assume complete
// delivery.
type Watcher struct {
	cfg     WatcherConfig
	dir     string
	base    string
	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a new log file watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("change handler cannot be nil")
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 10
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}

	return &Watcher{
		cfg:  cfg,
		dir:  filepath.Dir(cfg.Path),
		base: filepath.Base(cfg.Path),
	}, nil
}

// Start begins watching the log file. The containing directory is
// watched rather than the file itself so that replace-renames do not
// silently drop the watch.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close() //nolint:errcheck // discarded on setup failure
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true

	go w.loop(fsw, w.done)
	return nil
}

// Stop halts watching. Safe to call at any time, including before Start
// and twice in a row. No handler fires after Stop returns.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.mu.Unlock()

	_ = fsw.Close() //nolint:errcheck // closing stops the event loop
	<-done
}

// loop consumes fsnotify events until the watcher is closed.
func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	debounce := time.NewTimer(w.cfg.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(w.cfg.Debounce)
			}

		case <-debounce.C:
			pending = false
			w.readTail()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.cfg.OnError != nil {
				w.cfg.OnError(fmt.Errorf("watch %s: %w", w.dir, err))
			}
		}
	}
}

// readTail performs the bounded tail read and hands the text to the
// change handler.
func (w *Watcher) readTail() {
	text, err := ReadLastLines(w.cfg.Path, w.cfg.TailLines)
	if err != nil {
		if w.cfg.OnError != nil {
			w.cfg.OnError(err)
		}
		return
	}
	w.cfg.OnChange(text)
}
