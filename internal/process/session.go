package process

import (
	"errors"
	"os"
	"sync"
	"time"
)

// Session is one execution tracked by the registry. Identity fields are
// fixed at creation; the rest is guarded by mu and only moves forward.
type Session struct {
	id        int64
	mode      Mode
	binary    string
	command   string
	args      []string
	startedAt time.Time
	unit      ExecutionUnit
	mux       *multiplexer
	done      chan struct{}

	mu         sync.Mutex
	state      State
	exitCode   int
	reason     string
	endedAt    time.Time
	cancelAt   time.Time
	killed     bool
	progress   float64
	lastOutput string
}

func newSession(id int64, mode Mode, binary, command string, args []string) *Session {
	return &Session{
		id:        id,
		mode:      mode,
		binary:    binary,
		command:   command,
		args:      args,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		state:     StateStarting,
		exitCode:  -1,
	}
}

// ID returns the session id.
func (s *Session) ID() int64 { return s.id }

// Done is closed after the session has been torn down and removed.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitCode returns the exit code, -1 until the session is terminal.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:         s.id,
		State:      s.state,
		Mode:       s.mode,
		Binary:     s.binary,
		Command:    s.command,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		ExitCode:   s.exitCode,
		Reason:     s.reason,
		Progress:   s.progress,
		LastOutput: s.lastOutput,
	}
	if s.unit != nil {
		info.PID = s.unit.PID()
	}
	return info
}

// transition moves to a later state. It refuses to go backwards, to leave
// a terminal state, or to repeat the current state.
func (s *Session) transition(to State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if from.Terminal() || to.rank() <= from.rank() {
		return from, false
	}
	s.state = to
	if to == StateCancelling {
		s.cancelAt = time.Now()
	}
	return from, true
}

// requestCancel sends the termination request and moves to cancelling.
// It reports false when the session is already cancelling, terminal, or
// its unit has exited.
func (s *Session) requestCancel() (State, bool, error) {
	switch st := s.State(); st {
	case StateStarting, StateRunning:
	default:
		return st, false, nil
	}

	if err := s.unit.Terminate(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return s.State(), false, nil
		}
		return s.State(), false, err
	}

	from, ok := s.transition(StateCancelling)
	return from, ok, nil
}

// finish records the terminal outcome and returns the previous state.
func (s *Session) finish(state State, exitCode int, reason string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	s.state = state
	s.exitCode = exitCode
	s.reason = reason
	s.endedAt = time.Now()
	return from
}

// killDue reports whether a pending cancel has outlived timeout without an
// exit, and marks the kill as sent so it happens once.
func (s *Session) killDue(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCancelling || s.killed || timeout <= 0 {
		return false
	}
	if time.Since(s.cancelAt) < timeout {
		return false
	}
	s.killed = true
	return true
}

func (s *Session) setProgress(percent float64) {
	s.mu.Lock()
	s.progress = percent
	s.mu.Unlock()
}

func (s *Session) setLastOutput(line string) {
	s.mu.Lock()
	s.lastOutput = line
	s.mu.Unlock()
}
