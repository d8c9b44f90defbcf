package events

import (
	"sync/atomic"
	"time"

	"github.com/smazurov/mediaexec/internal/ffmpeg"
)

// Publisher is the publishing half of Bus.
type Publisher interface {
	Publish(ev Event)
}

// BusObserver turns session callbacks into bus events. Callbacks run on
// the session's monitor goroutine; subscribers receive them on their own
// goroutines, in order.
type BusObserver struct {
	bus       Publisher
	sessionID atomic.Int64
}

// NewBusObserver creates an observer publishing to bus.
func NewBusObserver(bus Publisher) *BusObserver {
	return &BusObserver{bus: bus}
}

// BindSession records the id stamped on every published event.
func (o *BusObserver) BindSession(id int64) {
	o.sessionID.Store(id)
}

// SessionID returns the bound session id, 0 before binding.
func (o *BusObserver) SessionID() int64 {
	return o.sessionID.Load()
}

// OnOutput publishes a SessionOutputEvent.
func (o *BusObserver) OnOutput(chunk string) {
	o.bus.Publish(SessionOutputEvent{SessionID: o.SessionID(), Data: chunk, Timestamp: now()})
}

// OnError publishes a SessionErrorEvent.
func (o *BusObserver) OnError(chunk string) {
	o.bus.Publish(SessionErrorEvent{SessionID: o.SessionID(), Data: chunk, Timestamp: now()})
}

// OnProgress publishes a SessionProgressEvent.
func (o *BusObserver) OnProgress(msg string) {
	pct, _ := ffmpeg.ParseProgressMessage(msg)
	o.bus.Publish(SessionProgressEvent{SessionID: o.SessionID(), Message: msg, Percent: pct, Timestamp: now()})
}

// OnComplete publishes a SessionCompletedEvent.
func (o *BusObserver) OnComplete(exitCode int) {
	o.bus.Publish(SessionCompletedEvent{SessionID: o.SessionID(), ExitCode: exitCode, Timestamp: now()})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
