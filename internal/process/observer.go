package process

import (
	"fmt"
	"log/slog"
)

// Observer receives the events of one session.
//
// OnOutput and OnError carry chunks read from the subprocess stdout and
// stderr (or lines pushed by an in-process engine). OnProgress carries
// "progress:<percent>" messages. OnComplete fires exactly once, after every
// other callback for the session has returned.
//
// Callbacks are invoked from the session's monitor goroutine, or for
// in-process sessions from the engine goroutine. Calls for one session are
// serialized. Panics are recovered and logged.
type Observer interface {
	OnOutput(chunk string)
	OnError(chunk string)
	OnProgress(msg string)
	OnComplete(exitCode int)
}

// SessionBinder is implemented by observers that want to know the id of the
// session they observe. BindSession is called once, before any other callback.
type SessionBinder interface {
	BindSession(id int64)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Output   func(chunk string)
	Error    func(chunk string)
	Progress func(msg string)
	Complete func(exitCode int)
}

// OnOutput implements Observer.
func (f ObserverFuncs) OnOutput(chunk string) {
	if f.Output != nil {
		f.Output(chunk)
	}
}

// OnError implements Observer.
func (f ObserverFuncs) OnError(chunk string) {
	if f.Error != nil {
		f.Error(chunk)
	}
}

// OnProgress implements Observer.
func (f ObserverFuncs) OnProgress(msg string) {
	if f.Progress != nil {
		f.Progress(msg)
	}
}

// OnComplete implements Observer.
func (f ObserverFuncs) OnComplete(exitCode int) {
	if f.Complete != nil {
		f.Complete(exitCode)
	}
}

// safeCall runs an observer callback, containing any panic.
func safeCall(logger *slog.Logger, callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Observer callback panicked", "callback", callback, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
