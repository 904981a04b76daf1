package logwatch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	t.Run("EmptyPath", func(t *testing.T) {
		_, err := NewWatcher(WatcherConfig{OnChange: func(string) {}})
		if err == nil {
			t.Error("NewWatcher() with empty path expected error, got nil")
		}
	})

	t.Run("NilHandler", func(t *testing.T) {
		_, err := NewWatcher(WatcherConfig{Path: "/tmp/Client.txt"})
		if err == nil {
			t.Error("NewWatcher() without handler expected error, got nil")
		}
	})
}

func TestWatcher_DeliversTailOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	var mu sync.Mutex
	var got []string
	w, err := NewWatcher(WatcherConfig{
		Path:      path,
		TailLines: 10,
		Debounce:  20 * time.Millisecond,
		OnChange: func(text string) {
			mu.Lock()
			got = append(got, text)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log for append: %v", err)
	}
	if _, err := f.WriteString("2024/08/30 12:31:05 abc123 Card drawn from the deck: <divination>{The Doctor}\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no tail delivered within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(got[0], "The Doctor") {
		t.Errorf("tail text %q does not contain appended line", got[0])
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	w, err := NewWatcher(WatcherConfig{
		Path:     filepath.Join(t.TempDir(), "Client.txt"),
		OnChange: func(string) {},
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Stop()
	w.Stop()
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Client.txt")
	if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	var mu sync.Mutex
	fired := 0
	w, err := NewWatcher(WatcherConfig{
		Path:     path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(string) {
			mu.Lock()
			fired++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "KakaoClient.txt"), []byte("noise\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("handler fired %d times for sibling file writes, want 0", fired)
	}
}
