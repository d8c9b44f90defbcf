package process

import "time"

// State represents the lifecycle position of a session.
// States only move forward: starting, running, optionally cancelling,
// then exactly one of completed or failed.
type State string

// Session states.
const (
	StateStarting   State = "starting"   // Registered, monitor not yet running
	StateRunning    State = "running"    // Monitor is pumping output
	StateCancelling State = "cancelling" // Termination requested, exit not yet observed
	StateCompleted  State = "completed"  // Exited normally with an exit code
	StateFailed     State = "failed"     // Killed by signal, undeterminable status, or engine fault
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) rank() int {
	switch s {
	case StateStarting:
		return 0
	case StateRunning:
		return 1
	case StateCancelling:
		return 2
	case StateCompleted, StateFailed:
		return 3
	}
	return -1
}

// Mode says how a session executes.
type Mode string

// Execution modes.
const (
	ModeSubprocess Mode = "subprocess"
	ModeInProcess  Mode = "inprocess"
)

// Info is a point-in-time snapshot of a session.
type Info struct {
	ID         int64
	State      State
	Mode       Mode
	PID        int
	Binary     string
	Command    string
	StartedAt  time.Time
	EndedAt    time.Time
	ExitCode   int
	Reason     string
	Progress   float64
	LastOutput string
}
