//go:build linux

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/mediaexec/internal/process"
	"github.com/spf13/cobra"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	sh, _ = filepath.Abs(sh)

	m := process.NewManager(&process.ManagerOptions{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		KillTimeout: time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Close(ctx)
	})
	return &Runtime{Manager: m, Binary: sh}
}

func TestRunEchoed(t *testing.T) {
	rt := newTestRuntime(t)

	var stdout, stderr bytes.Buffer
	code, err := runEchoed(context.Background(), rt, `-c "echo out; echo err >&2; exit 4"`, &stdout, &stderr)
	if err != nil {
		t.Fatalf("runEchoed: %v", err)
	}
	if code != 4 {
		t.Errorf("code = %d, want 4", code)
	}
	if stdout.String() != "out\n" || stderr.String() != "err\n" {
		t.Errorf("stdout = %q, stderr = %q", stdout.String(), stderr.String())
	}
}

func TestRunEchoedCancelled(t *testing.T) {
	rt := newTestRuntime(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	code, err := runEchoed(ctx, rt, `-c "sleep 30"`, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected context error")
	}
	if code != -1 {
		t.Errorf("code = %d, want -1 for a terminated session", code)
	}
}

func TestExecAllReportsHighestCode(t *testing.T) {
	rt := newTestRuntime(t)

	var out bytes.Buffer
	code, err := execAll(context.Background(), rt, []string{
		`-c "echo first"`,
		`-c "exit 3"`,
		`-c "exit 1"`,
	}, &out, false)
	if err != nil {
		t.Fatalf("execAll: %v", err)
	}
	if code != 3 {
		t.Errorf("code = %d, want 3", code)
	}
	if !strings.Contains(out.String(), " out] first\n") {
		t.Errorf("output missing prefixed line:\n%s", out.String())
	}
	if strings.Count(out.String(), " exit] ") != 3 {
		t.Errorf("want one exit line per session:\n%s", out.String())
	}
}

func TestExecAllStartFailure(t *testing.T) {
	rt := newTestRuntime(t)
	rt.Binary = "relative/ffmpeg"

	code, err := execAll(context.Background(), rt, []string{"-version"}, io.Discard, false)
	if err == nil {
		t.Fatal("expected start error")
	}
	if code != -1 {
		t.Errorf("code = %d, want -1", code)
	}
}

func TestResolveBinary(t *testing.T) {
	got, err := ResolveBinary("bin/ffmpeg")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(got) || !strings.HasSuffix(got, "bin/ffmpeg") {
		t.Errorf("ResolveBinary = %q", got)
	}
}

func TestExitStatus(t *testing.T) {
	tests := map[int]int{0: 0, 3: 3, 255: 255, -1: 255, 300: 255}
	for in, want := range tests {
		if got := exitStatus(in); got != want {
			t.Errorf("exitStatus(%d) = %d, want %d", in, got, want)
		}
	}
}

// countStops wraps notifyContext so the test sees whether the signal
// registration was released.
func countStops(t *testing.T) *atomic.Int32 {
	t.Helper()
	var stops atomic.Int32
	orig := notifyContext
	notifyContext = func(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
		ctx, stop := orig(parent, sigs...)
		return ctx, func() {
			stops.Add(1)
			stop()
		}
	}
	t.Cleanup(func() { notifyContext = orig })
	return &stops
}

func TestRunCommandReturnsStatus(t *testing.T) {
	stops := countStops(t)
	rt := newTestRuntime(t)
	factory := func(*cobra.Command) (*Runtime, error) { return rt, nil }

	var stdout, stderr bytes.Buffer
	code := runCommand(&cobra.Command{}, factory, []string{`-c "echo hi; exit 4"`}, false, &stdout, &stderr)
	if code != 4 {
		t.Errorf("code = %d, want 4", code)
	}
	if stdout.String() != "hi\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if got := stops.Load(); got != 1 {
		t.Errorf("signal stop called %d times, want 1", got)
	}
	if _, err := rt.Manager.Execute(rt.Binary, "-c true", nil); !errors.Is(err, process.ErrManagerClosed) {
		t.Errorf("manager not closed after run: err = %v", err)
	}

	code = runCommand(&cobra.Command{}, factory, []string{"-c", "exit 300"}, true, &stdout, &stderr)
	if code != 1 {
		t.Errorf("closed manager code = %d, want 1", code)
	}
	if got := stops.Load(); got != 2 {
		t.Errorf("signal stop called %d times, want 2", got)
	}
}

func TestRunCommandRuntimeError(t *testing.T) {
	stops := countStops(t)
	factory := func(*cobra.Command) (*Runtime, error) { return nil, errors.New("no ffmpeg") }

	var stderr bytes.Buffer
	if code := runCommand(&cobra.Command{}, factory, []string{"-version"}, false, io.Discard, &stderr); code != 1 {
		t.Errorf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "no ffmpeg") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if got := stops.Load(); got != 0 {
		t.Errorf("signal context created before runtime: %d stops", got)
	}
}

func TestExecCommandReturnsStatus(t *testing.T) {
	stops := countStops(t)
	rt := newTestRuntime(t)
	factory := func(*cobra.Command) (*Runtime, error) { return rt, nil }

	var stdout bytes.Buffer
	code := execCommand(&cobra.Command{}, factory, []string{`-c "exit 2"`, `-c "exit 5"`}, false, &stdout, io.Discard)
	if code != 5 {
		t.Errorf("code = %d, want 5", code)
	}
	if got := stops.Load(); got != 1 {
		t.Errorf("signal stop called %d times, want 1", got)
	}
}
