package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionStateChanged
	TypeSessionOutput
	TypeSessionError
	TypeSessionProgress
	TypeSessionCompleted
	TypeSessionMetrics
	TypeLogEntry
	TypeSessionEnvelope
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published once a session is registered.
type SessionStartedEvent struct {
	SessionID int64  `json:"session_id" example:"1" doc:"Session identifier"`
	Mode      string `json:"mode" example:"subprocess" doc:"Execution mode: subprocess or inprocess"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"OS process id, absent for in-process sessions"`
	Binary    string `json:"binary,omitempty" example:"/usr/bin/ffmpeg" doc:"Executable path"`
	Command   string `json:"command" example:"-i in.mp4 out.mkv" doc:"Command string"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionStateChangedEvent represents a lifecycle transition.
type SessionStateChangedEvent struct {
	SessionID int64  `json:"session_id" example:"1" doc:"Session identifier"`
	OldState  string `json:"old_state" example:"running" doc:"Previous state"`
	NewState  string `json:"new_state" example:"cancelling" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// SessionOutputEvent carries a chunk read from standard output.
type SessionOutputEvent struct {
	SessionID int64  `json:"session_id" example:"1" doc:"Session identifier"`
	Data      string `json:"data" doc:"Output chunk"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionOutputEvent.
func (e SessionOutputEvent) Type() uint32 { return TypeSessionOutput }

// SessionErrorEvent carries a chunk read from standard error.
type SessionErrorEvent struct {
	SessionID int64  `json:"session_id" example:"1" doc:"Session identifier"`
	Data      string `json:"data" doc:"Error stream chunk"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionErrorEvent.
func (e SessionErrorEvent) Type() uint32 { return TypeSessionError }

// SessionProgressEvent reports engine progress.
type SessionProgressEvent struct {
	SessionID int64   `json:"session_id" example:"1" doc:"Session identifier"`
	Message   string  `json:"message" example:"progress:42.5" doc:"Progress message as delivered to observers"`
	Percent   float64 `json:"percent" example:"42.5" doc:"Progress in percent"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionProgressEvent.
func (e SessionProgressEvent) Type() uint32 { return TypeSessionProgress }

// SessionCompletedEvent is the last event of a session.
type SessionCompletedEvent struct {
	SessionID int64  `json:"session_id" example:"1" doc:"Session identifier"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Exit code, -1 for abnormal termination"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionCompletedEvent.
func (e SessionCompletedEvent) Type() uint32 { return TypeSessionCompleted }

// SessionMetricsEvent is a periodic snapshot of ffmpeg metrics for a session.
type SessionMetricsEvent struct {
	EventType string `json:"type"`
	SessionID string `json:"session_id"`
	Progress  string `json:"progress"`
	FPS       string `json:"fps"`
	Speed     string `json:"speed"`
	Frames    string `json:"frames"`
}

// Type returns the event type identifier for SessionMetricsEvent.
func (e SessionMetricsEvent) Type() uint32 { return TypeSessionMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"process" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// SessionEnvelope carries any session event on one shared queue, so a
// subscriber sees one session's events in publish order regardless of type.
type SessionEnvelope struct {
	SessionID int64
	Payload   Event
}

// Type returns the event type identifier for SessionEnvelope.
func (e SessionEnvelope) Type() uint32 { return TypeSessionEnvelope }
