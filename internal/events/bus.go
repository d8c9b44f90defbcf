package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Each subscriber consumes from its own queue, so a slow subscriber never
// blocks the publisher.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. Session events are also
// wrapped in a SessionEnvelope for order-sensitive consumers.
// Usage: bus.Publish(SessionCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionOutputEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionErrorEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionProgressEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionCompletedEvent:
		event.Publish(b.dispatcher, e)
		b.envelope(e.SessionID, e)
	case SessionMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

func (b *Bus) envelope(sessionID int64, ev Event) {
	event.Publish(b.dispatcher, SessionEnvelope{SessionID: sessionID, Payload: ev})
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type selects the events it receives. Unknown handler types get
// a no-op unsubscribe.
// Usage: unsub := bus.Subscribe(func(e SessionCompletedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionOutputEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionEnvelope):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
