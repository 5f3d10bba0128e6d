package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/ticketvox/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
roles:
  - {name: Frontend engineer, hourly_rate: 5000}
  - {name: Designer, hourly_rate: 3000}
`

const watcherUpdatedYAML = `
server:
  log_level: debug
roles:
  - {name: Frontend engineer, hourly_rate: 5500}
  - {name: QA engineer, hourly_rate: 3500}
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

func quiet() config.WatcherOption {
	return config.WithWatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newWatcher(t *testing.T, content string, onChange config.ChangeFunc) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	w, err := config.NewWatcher(path, onChange, config.WithInterval(50*time.Millisecond), quiet())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := newWatcher(t, watcherValidYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if len(cfg.Roles) != 2 {
		t.Errorf("roles: got %d, want 2", len(cfg.Roles))
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotOld  *config.Config
		gotNew  *config.Config
		gotDiff config.ConfigDiff
	)
	called := make(chan struct{}, 1)
	w, path := newWatcher(t, watcherValidYAML, func(old, new *config.Config, d config.ConfigDiff) {
		mu.Lock()
		gotOld, gotNew, gotDiff = old, new, d
		mu.Unlock()
		select {
		case called <- struct{}{}:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, watcherUpdatedYAML)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotOld.Server.LogLevel != config.LogInfo || gotNew.Server.LogLevel != config.LogDebug {
		t.Errorf("log levels: old %q new %q", gotOld.Server.LogLevel, gotNew.Server.LogLevel)
	}
	if !gotDiff.LogLevelChanged || gotDiff.NewLogLevel != config.LogDebug {
		t.Errorf("diff log level = %+v", gotDiff)
	}
	if !gotDiff.RolesChanged {
		t.Error("RolesChanged = false, want true")
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogDebug {
		t.Errorf("Current() log_level: got %q, want %q", cur.Server.LogLevel, config.LogDebug)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	w, path := newWatcher(t, watcherValidYAML, func(*config.Config, *config.Config, config.ConfigDiff) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback should not be called for invalid config, got %d calls", calls)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() should still have old config, got log_level=%q", cur.Server.LogLevel)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _ := newWatcher(t, watcherValidYAML, nil)
	for range 3 {
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	_, path := newWatcher(t, watcherValidYAML, func(*config.Config, *config.Config, config.ConfigDiff) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback should not fire for touch-only, got %d calls", calls)
	}
}
