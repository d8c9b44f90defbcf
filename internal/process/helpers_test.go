package process

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is an Observer that keeps everything it was told.
type recorder struct {
	mu             sync.Mutex
	id             int64
	stdout         strings.Builder
	stderr         strings.Builder
	progress       []string
	completes      []int
	afterComplete  int
	runningOnClose bool
	isRunning      func(int64) bool
	done           chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) BindSession(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
}

func (r *recorder) OnOutput(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completes) > 0 {
		r.afterComplete++
	}
	r.stdout.WriteString(chunk)
}

func (r *recorder) OnError(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completes) > 0 {
		r.afterComplete++
	}
	r.stderr.WriteString(chunk)
}

func (r *recorder) OnProgress(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completes) > 0 {
		r.afterComplete++
	}
	r.progress = append(r.progress, msg)
}

func (r *recorder) OnComplete(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes = append(r.completes, code)
	if r.isRunning != nil {
		r.runningOnClose = r.isRunning(r.id)
	}
	if len(r.completes) == 1 {
		close(r.done)
	}
}

func (r *recorder) wait(t *testing.T, timeout time.Duration) int {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for OnComplete")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes[0]
}

func (r *recorder) output() (stdout, stderr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stdout.String(), r.stderr.String()
}

// waitRemoved waits until the manager no longer lists id.
func waitRemoved(t *testing.T, m *Manager, id int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.registry.Find(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %d still registered", id)
}
