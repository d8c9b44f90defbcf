// Package cmd holds the mediaexec subcommands that run sessions from the
// command line instead of serving the HTTP API.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/smazurov/mediaexec/internal/process"
	"github.com/spf13/cobra"
)

// Runtime is what a subcommand needs to run sessions.
type Runtime struct {
	Manager *process.Manager
	Binary  string
}

// RuntimeFactory builds a Runtime once global options are loaded.
type RuntimeFactory func(cmd *cobra.Command) (*Runtime, error)

// ResolveBinary returns path made absolute, or the absolute path of
// "ffmpeg" found on PATH when path is empty.
func ResolveBinary(path string) (string, error) {
	if path == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return "", fmt.Errorf("ffmpeg not found on PATH: %w", err)
		}
		path = found
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

var notifyContext = signal.NotifyContext

// signalContext is cancelled on SIGINT or SIGTERM. The returned stop
// func must run before the process exits to restore default handling.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return notifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// exitStatus maps a session exit code to a process exit status.
func exitStatus(code int) int {
	if code < 0 || code > 255 {
		return 255
	}
	return code
}
