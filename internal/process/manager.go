package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/mediaexec/internal/argv"
	"github.com/smazurov/mediaexec/internal/metrics"
)

// Manager starts sessions, tracks them in its Registry and tears them down
// when they exit. All methods are safe for concurrent use.
type Manager struct {
	opts     ManagerOptions
	registry *Registry
	nextID   atomic.Int64

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a manager. opts may be nil.
func NewManager(opts *ManagerOptions) *Manager {
	var o ManagerOptions
	if opts != nil {
		o = *opts
	}
	return &Manager{
		opts:     o.withDefaults(),
		registry: NewRegistry(),
	}
}

// Execute tokenizes command and starts a session. An empty binary selects
// the in-process engine. On a configuration error it returns
// InvalidSessionID and the error; nothing is registered and obs is never
// called. obs may be nil.
func (m *Manager) Execute(binary, command string, obs Observer) (int64, error) {
	s, err := m.start(binary, command, argv.Build(command), obs)
	if err != nil {
		return InvalidSessionID, err
	}
	return s.id, nil
}

// ExecuteArgs is Execute for an already tokenized command.
func (m *Manager) ExecuteArgs(binary string, args []string, obs Observer) (int64, error) {
	tokens := argv.FromTokens(args)
	s, err := m.start(binary, argv.Join(tokens), tokens, obs)
	if err != nil {
		return InvalidSessionID, err
	}
	return s.id, nil
}

// ExecuteSync runs command without an observer and blocks until the
// session is torn down. If ctx ends first the session is cancelled and
// still waited for; the returned error is then ctx.Err().
func (m *Manager) ExecuteSync(ctx context.Context, binary, command string) (int, error) {
	s, err := m.start(binary, command, argv.Build(command), nil)
	if err != nil {
		return -1, err
	}

	select {
	case <-s.done:
		return s.ExitCode(), nil
	case <-ctx.Done():
		m.cancelSession(s)
		<-s.done
		return s.ExitCode(), ctx.Err()
	}
}

// Wait blocks until session id is torn down and returns its exit code.
func (m *Manager) Wait(ctx context.Context, id int64) (int, error) {
	s, ok := m.registry.Find(id)
	if !ok {
		return -1, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	select {
	case <-s.done:
		return s.ExitCode(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Cancel requests termination of a live session and returns immediately.
// It reports false for unknown, already cancelling or finished sessions.
func (m *Manager) Cancel(id int64) bool {
	s, ok := m.registry.Find(id)
	if !ok {
		return false
	}
	return m.cancelSession(s)
}

// CancelAll requests termination of every live session, best effort.
func (m *Manager) CancelAll() {
	m.registry.ForEach(func(s *Session) {
		m.cancelSession(s)
	})
}

// IsRunning reports whether id is registered and not yet terminal. It
// turns false before OnComplete is delivered.
func (m *Manager) IsRunning(id int64) bool {
	s, ok := m.registry.Find(id)
	return ok && !s.State().Terminal()
}

// Session returns a snapshot of a live session.
func (m *Manager) Session(id int64) (Info, bool) {
	s, ok := m.registry.Find(id)
	if !ok {
		return Info{}, false
	}
	return s.Info(), true
}

// Sessions returns snapshots of all live sessions ordered by id.
func (m *Manager) Sessions() []Info {
	list := m.registry.Snapshot()
	infos := make([]Info, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	return infos
}

// RunningCount returns the number of sessions not yet terminal.
func (m *Manager) RunningCount() int {
	n := 0
	m.registry.ForEach(func(s *Session) {
		if !s.State().Terminal() {
			n++
		}
	})
	return n
}

// Close refuses new sessions, cancels the live ones and waits for their
// teardown or ctx, whichever comes first.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.opts.Logger.Info("Stopping all sessions", "count", m.registry.Len())
	m.CancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.opts.Logger.Info("All sessions stopped")
		return nil
	case <-ctx.Done():
		m.opts.Logger.Warn("Timeout waiting for sessions to stop", "remaining", m.registry.Len())
		return ctx.Err()
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// start validates, spawns and registers a session, then hands it to a
// monitor goroutine.
func (m *Manager) start(binary, command string, tokens []string, obs Observer) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	s, err := m.spawn(binary, command, tokens, obs)
	if err != nil {
		m.wg.Done()
		return nil, err
	}

	m.registry.Insert(s)
	metrics.SessionStarted(string(s.mode))
	m.notifyStateChange(s.id, "", StateStarting)
	if m.opts.OnStart != nil {
		m.opts.OnStart(s.Info())
	}
	m.opts.Logger.Info("Session started",
		"session_id", s.id, "mode", s.mode, "pid", s.unit.PID(), "command", command)

	go func() {
		defer m.wg.Done()
		m.monitor(s)
	}()

	// Close may have swept the registry before this session was in it.
	if m.isClosed() {
		m.cancelSession(s)
	}
	return s, nil
}

func (m *Manager) spawn(binary, command string, tokens []string, obs Observer) (*Session, error) {
	mode := ModeSubprocess
	if binary == "" {
		mode = ModeInProcess
	}

	fail := func(err error) (*Session, error) {
		metrics.SpawnFailed(string(mode))
		m.opts.Logger.Warn("Failed to start session", "mode", mode, "binary", binary, "error", err)
		return nil, err
	}

	var args []string
	switch mode {
	case ModeInProcess:
		if m.opts.Engine == nil {
			return fail(ErrNoEngine)
		}
		args = append([]string{m.opts.EngineName}, tokens...)
	default:
		if err := CheckExecutable(binary); err != nil {
			return fail(err)
		}
		args = append([]string{binary}, tokens...)
	}

	s := newSession(m.nextID.Add(1), mode, binary, command, args)
	s.mux = newMultiplexer(s, obs, mode == ModeSubprocess, m.opts.Logger, m.opts.EngineLogger)

	if b, ok := obs.(SessionBinder); ok {
		safeCall(m.opts.Logger, "BindSession", func() { b.BindSession(s.id) })
	}

	switch mode {
	case ModeInProcess:
		s.unit = StartInProcess(m.opts.Engine, args, s.mux)
	default:
		unit, err := startSubprocess(binary, args, s.mux, m.opts.ReadBufferSize, m.opts.Logger)
		if err != nil {
			return fail(err)
		}
		s.unit = unit
	}
	return s, nil
}

// monitor pumps output until the unit exits, then tears the session down:
// terminal state, OnComplete, observer release, descriptor close, removal.
func (m *Manager) monitor(s *Session) {
	logger := m.opts.Logger.With("session_id", s.id)

	if from, ok := s.transition(StateRunning); ok {
		m.notifyStateChange(s.id, from, StateRunning)
	}

	for !s.unit.Poll(m.opts.PollInterval) {
		if s.killDue(m.opts.KillTimeout) && s.mode == ModeSubprocess {
			logger.Warn("Escalating to SIGKILL", "pid", s.unit.PID(), "timeout", m.opts.KillTimeout)
			if err := s.unit.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logger.Warn("Failed to kill session", "error", err)
			}
		}
	}
	s.unit.Drain()

	code, reason := s.unit.ExitStatus()
	state := StateCompleted
	if reason != "" {
		state = StateFailed
	}
	from := s.finish(state, code, reason)
	m.notifyStateChange(s.id, from, state)

	s.mux.complete(code)

	if err := s.unit.Close(); err != nil {
		logger.Warn("Failed to release session resources", "error", err)
	}
	m.registry.Remove(s.id)
	close(s.done)

	elapsed := time.Since(s.startedAt)
	metrics.SessionFinished(string(s.mode), string(state), elapsed)
	metrics.DeleteFFmpegMetrics(s.mux.metricsID)

	attrs := []any{"state", state, "exit_code", code, "duration", elapsed}
	if reason != "" {
		attrs = append(attrs, "reason", reason)
	}
	logger.Info("Session finished", attrs...)
}

func (m *Manager) cancelSession(s *Session) bool {
	from, ok, err := s.requestCancel()
	if err != nil {
		m.opts.Logger.Warn("Failed to signal session", "session_id", s.id, "error", err)
		return false
	}
	if ok {
		m.opts.Logger.Info("Cancel requested", "session_id", s.id)
		m.notifyStateChange(s.id, from, StateCancelling)
	}
	return ok
}

func (m *Manager) notifyStateChange(id int64, oldState, newState State) {
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(id, oldState, newState)
	}
}
