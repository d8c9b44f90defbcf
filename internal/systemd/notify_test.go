package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

type recordingNotifier struct {
	mu     sync.Mutex
	states []string
}

func (r *recordingNotifier) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestNotifier(rec *recordingNotifier) *Notifier {
	return &Notifier{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify: rec.notify,
	}
}

func TestNotifierStates(t *testing.T) {
	rec := &recordingNotifier{}
	n := newTestNotifier(rec)

	n.Ready()
	n.Status("%d sessions running", 2)
	n.Stopping()

	want := []string{daemon.SdNotifyReady, "STATUS=2 sessions running", daemon.SdNotifyStopping}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifierSendErrorIsLogged(t *testing.T) {
	n := &Notifier{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify: func(string) (bool, error) { return false, errors.New("socket gone") },
	}
	n.Ready()
}

func TestRunWatchdogPingsUntilCancelled(t *testing.T) {
	rec := &recordingNotifier{}
	n := newTestNotifier(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.runWatchdog(ctx, 10*time.Millisecond, func() string { return "idle" })
		close(done)
	}()

	time.Sleep(80 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog loop did not stop")
	}

	pings := 0
	for _, s := range rec.snapshot() {
		if s == daemon.SdNotifyWatchdog {
			pings++
		}
	}
	if pings < 2 {
		t.Errorf("got %d watchdog pings, want at least 2", pings)
	}
}

func TestRunWatchdogDisabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	rec := &recordingNotifier{}
	n := newTestNotifier(rec)

	n.RunWatchdog(context.Background(), nil)
	if len(rec.snapshot()) != 0 {
		t.Error("watchdog sent notifications while disabled")
	}
}
