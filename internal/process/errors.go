package process

import (
	"errors"
	"fmt"
)

// InvalidSessionID is returned by Execute when nothing was started.
const InvalidSessionID int64 = -1

// Sentinel errors.
var (
	ErrNotExecutable   = errors.New("not an executable file")
	ErrNoEngine        = errors.New("no in-process engine configured")
	ErrManagerClosed   = errors.New("session manager closed")
	ErrSessionNotFound = errors.New("session not found")
)

// SpawnError reports a configuration failure detected before a session
// was registered: a bad binary path, or a failing pipe or fork/exec call.
type SpawnError struct {
	Path string
	Op   string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
