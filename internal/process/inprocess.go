package process

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

// DefaultEngineName is argv[0] for in-process sessions.
const DefaultEngineName = "ffmpeg"

// InProcessUnit runs an Engine on a dedicated goroutine. The engine pushes
// output and progress through the sink itself, so Poll only waits.
type InProcessUnit struct {
	args   []string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	code   int
	reason string
}

// StartInProcess launches engine with args on a new goroutine. args must
// already include argv[0]; the unit keeps its own copy for the whole run.
func StartInProcess(engine Engine, args []string, sink Sink) *InProcessUnit {
	ctx, cancel := context.WithCancel(context.Background())
	u := &InProcessUnit{
		args:   slices.Clone(args),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go u.run(engine, sink)
	return u
}

func (u *InProcessUnit) run(engine Engine, sink Sink) {
	defer close(u.done)
	defer func() {
		if r := recover(); r != nil {
			u.mu.Lock()
			u.code = -1
			u.reason = fmt.Sprintf("engine panic: %v", r)
			u.mu.Unlock()
		}
	}()

	code := engine.Run(u.ctx, u.args, sink)

	u.mu.Lock()
	u.code = code
	u.mu.Unlock()
}

// Mode implements ExecutionUnit.
func (u *InProcessUnit) Mode() Mode { return ModeInProcess }

// PID implements ExecutionUnit.
func (u *InProcessUnit) PID() int { return 0 }

// Poll implements ExecutionUnit.
func (u *InProcessUnit) Poll(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-u.done:
		return true
	case <-timer.C:
		return false
	}
}

// Drain implements ExecutionUnit. Engine output is pushed synchronously.
func (u *InProcessUnit) Drain() {}

// ExitStatus implements ExecutionUnit.
func (u *InProcessUnit) ExitStatus() (int, string) {
	select {
	case <-u.done:
	default:
		return -1, "still running"
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	return u.code, u.reason
}

// Terminate cancels the context passed to the engine.
func (u *InProcessUnit) Terminate() error {
	select {
	case <-u.done:
		return os.ErrProcessDone
	default:
	}
	u.cancel()
	return nil
}

// Kill is the same as Terminate: a goroutine cannot be stopped from outside.
func (u *InProcessUnit) Kill() error {
	return u.Terminate()
}

// Close implements ExecutionUnit.
func (u *InProcessUnit) Close() error {
	u.cancel()
	return nil
}
