package process

import (
	"context"
	"time"
)

// Stream identifies one of the two output streams of a session.
type Stream int

// Output streams.
const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Sink receives what an execution unit produces.
// Subprocess units call it from the monitor goroutine; in-process units
// call it from the engine goroutine.
type Sink interface {
	Write(stream Stream, text string)
	Progress(percent float64)
}

// ExecutionUnit is the thing that actually runs a session: an OS
// subprocess or an engine call on a worker goroutine. The monitor drives
// it with Poll until it reports exit, then calls Drain, ExitStatus and
// Close in that order. Terminate and Kill may be called concurrently with
// the monitor.
type ExecutionUnit interface {
	// Mode reports the variant.
	Mode() Mode

	// PID returns the OS process id, or 0 for in-process units.
	PID() int

	// Poll forwards whatever output becomes available within timeout
	// and reports whether the unit has exited.
	Poll(timeout time.Duration) bool

	// Drain forwards output that was buffered before exit.
	Drain()

	// ExitStatus returns the exit code and, for abnormal termination,
	// a non-empty reason. Abnormal termination always reports -1.
	ExitStatus() (code int, reason string)

	// Terminate requests a graceful stop. Returns os.ErrProcessDone
	// once the unit has exited.
	Terminate() error

	// Kill forces a stop where the variant supports it.
	Kill() error

	// Close releases descriptors and handles. Safe to call more than once.
	Close() error
}

// Engine is the in-process media engine entry point. Run receives the full
// argument vector (argv[0] included) and returns the exit code. Diagnostic
// lines and progress go to sink, never to the process stdout. Run should
// return promptly once ctx is cancelled.
type Engine interface {
	Run(ctx context.Context, args []string, sink Sink) int
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, args []string, sink Sink) int

// Run implements Engine.
func (f EngineFunc) Run(ctx context.Context, args []string, sink Sink) int {
	return f(ctx, args, sink)
}
