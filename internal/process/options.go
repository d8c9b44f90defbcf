package process

import (
	"log/slog"
	"time"
)

// Defaults for ManagerOptions.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultKillTimeout  = 5 * time.Second

	defaultReadBufferSize = 4096
)

// StateChangeCallback is called after a session changes state. oldState is
// empty for the initial transition into StateStarting.
type StateChangeCallback func(id int64, oldState, newState State)

// StartCallback is called once a session is registered, before its
// monitor runs.
type StartCallback func(info Info)

// ManagerOptions configures a Manager. The zero value runs subprocess
// sessions only.
type ManagerOptions struct {
	// Engine runs sessions started without a binary path (optional).
	Engine Engine

	// EngineName is argv[0] for in-process sessions. Defaults to "ffmpeg".
	EngineName string

	// PollInterval bounds every readiness wait of a monitor.
	PollInterval time.Duration

	// ReadBufferSize is the largest chunk read from a pipe at once.
	ReadBufferSize int

	// KillTimeout is how long a cancelled subprocess may take to exit
	// before it is sent SIGKILL. Negative disables escalation.
	KillTimeout time.Duration

	// OnStart and OnStateChange observe the lifecycle of every session.
	OnStart       StartCallback
	OnStateChange StateChangeCallback

	// Logger for manager operations. If nil, uses slog.Default().
	Logger *slog.Logger

	// EngineLogger receives the engine's output split into lines.
	// If nil, uses Logger.
	EngineLogger *slog.Logger
}

func (o ManagerOptions) withDefaults() ManagerOptions {
	if o.EngineName == "" {
		o.EngineName = DefaultEngineName
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultReadBufferSize
	}
	if o.KillTimeout == 0 {
		o.KillTimeout = DefaultKillTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.EngineLogger == nil {
		o.EngineLogger = o.Logger
	}
	return o
}
