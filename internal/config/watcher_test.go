package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/mediaexec/internal/logging"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[logging.Config]) *Watcher[logging.Config] {
	t.Helper()
	opts = append([]WatcherOption[logging.Config]{WithDebounce[logging.Config](30 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	})
	return w
}

func expectLevel(t *testing.T, ch <-chan logging.Config, want string) {
	t.Helper()
	select {
	case cfg := <-ch:
		if cfg.Level != want {
			t.Errorf("Level = %q, want %q", cfg.Level, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for reload to level %q", want)
	}
}

func TestWatcherReloadOnWrite(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")

	received := make(chan logging.Config, 4)
	w := startWatcher(t, path)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectLevel(t, received, "debug")
}

func TestWatcherReloadOnRenameSave(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")

	received := make(chan logging.Config, 4)
	w := startWatcher(t, path)
	w.OnReload(func(cfg logging.Config) { received <- cfg })

	tmp := filepath.Join(filepath.Dir(path), ".config.toml.swp")
	if err := os.WriteFile(tmp, []byte("[logging]\nlevel = \"error\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	expectLevel(t, received, "error")
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")

	var calls atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(logging.Config) { calls.Add(1) })

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for unrelated file", n)
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")

	var calls atomic.Int32
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger(), WithDebounce[logging.Config](150*time.Millisecond))
	w.OnReload(func(logging.Config) { calls.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, level := range []string{"debug", "warn", "error"} {
		if err := os.WriteFile(path, []byte("[logging]\nlevel = \""+level+"\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := writeFile(t, "[logging]\nlevel = \"info\"\n")
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger())

	var first, second atomic.Int32
	unsubscribe := w.OnReload(func(logging.Config) { first.Add(1) })
	w.OnReload(func(logging.Config) { second.Add(1) })

	w.Reload()
	unsubscribe()
	unsubscribe()
	w.Reload()

	if first.Load() != 1 || second.Load() != 2 {
		t.Errorf("first=%d second=%d, want 1 and 2", first.Load(), second.Load())
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeFile(t, "[logging\nlevel = ")

	errs := make(chan error, 1)
	var calls atomic.Int32
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger(),
		WithErrorHandler[logging.Config](func(err error) { errs <- err }))
	w.OnReload(func(logging.Config) { calls.Add(1) })

	w.Reload()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("nil error passed to handler")
		}
	default:
		t.Fatal("error handler not called")
	}
	if calls.Load() != 0 {
		t.Error("reload handler called despite load error")
	}
}

func TestWatcherStartMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "config.toml")
	w := NewConfigWatcher(path, LoadLoggingConfig, quietLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
	if err := w.Stop(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Errorf("Stop on unstarted watcher: %v", err)
	}
}
