//go:build !linux

package process

import (
	"errors"
	"log/slog"
)

func startSubprocess(path string, _ []string, _ Sink, _ int, _ *slog.Logger) (ExecutionUnit, error) {
	return nil, &SpawnError{Path: path, Op: "start", Err: errors.ErrUnsupported}
}
