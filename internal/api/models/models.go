package models

import "time"

// Health check models
type HealthData struct {
	Status          string `json:"status" example:"ok" doc:"Service status"`
	Message         string `json:"message" example:"API is healthy" doc:"Status message"`
	RunningSessions int    `json:"running_sessions" example:"2" doc:"Number of live sessions"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Session models
type SessionMode string

const (
	ModeSubprocess SessionMode = "subprocess"
	ModeInProcess  SessionMode = "inprocess"
)

type SessionCreateData struct {
	Command string      `json:"command" example:"-i \"in file.mp4\" -c:v libx264 out.mkv" doc:"Engine arguments as one string; double quotes group tokens"`
	Args    []string    `json:"args,omitempty" doc:"Pre-split arguments, used instead of command when present"`
	Mode    SessionMode `json:"mode,omitempty" enum:"subprocess,inprocess" default:"subprocess" doc:"Run as a child process or on the in-process engine"`
	Binary  string      `json:"binary,omitempty" example:"/usr/bin/ffmpeg" doc:"Absolute executable path, defaults to the configured ffmpeg"`
}

type SessionCreateRequest struct {
	Body SessionCreateData
}

type SessionCreatedData struct {
	SessionID int64 `json:"session_id" example:"1" doc:"Identifier of the started session"`
}

type SessionCreatedResponse struct {
	Body SessionCreatedData
}

type SessionData struct {
	SessionID  int64     `json:"session_id" example:"1" doc:"Session identifier"`
	State      string    `json:"state" example:"running" enum:"starting,running,cancelling,completed,failed" doc:"Lifecycle state"`
	Mode       string    `json:"mode" example:"subprocess" doc:"Execution mode"`
	PID        int       `json:"pid,omitempty" example:"4242" doc:"OS process id"`
	Binary     string    `json:"binary,omitempty" example:"/usr/bin/ffmpeg" doc:"Executable path"`
	Command    string    `json:"command" example:"-i in.mp4 out.mkv" doc:"Command string"`
	StartedAt  time.Time `json:"started_at" doc:"When the session was registered"`
	Uptime     float64   `json:"uptime_seconds" example:"12.5" doc:"Seconds since start"`
	Progress   float64   `json:"progress,omitempty" example:"42.5" doc:"Last reported progress in percent"`
	LastOutput string    `json:"last_output,omitempty" doc:"Last output line"`
}

type SessionResponse struct {
	Body SessionData
}

type SessionListData struct {
	Sessions []SessionData `json:"sessions" doc:"Live sessions ordered by id"`
	Count    int           `json:"count" example:"2" doc:"Number of live sessions"`
}

type SessionListResponse struct {
	Body SessionListData
}

type SessionIDInput struct {
	SessionID int64 `path:"session_id" minimum:"1" example:"1" doc:"Session identifier"`
}

type CancelData struct {
	Cancelled bool `json:"cancelled" example:"true" doc:"Whether a termination request was issued"`
}

type CancelResponse struct {
	Body CancelData
}

type CancelAllData struct {
	Requested int `json:"requested" example:"3" doc:"Number of live sessions at the time of the request"`
}

type CancelAllResponse struct {
	Body CancelAllData
}

// Log models
type LogsInput struct {
	Since uint64 `query:"since" doc:"Only entries with a sequence number above this value"`
	Level string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level"`
}

type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Sequence number"`
	Timestamp  time.Time      `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"process" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"10" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// SSE handshake
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}
