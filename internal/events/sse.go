package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// for the SSE handler's select loop. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeSessions forwards every session event to ch through the
// envelope queue, keeping publish order across event types.
func SubscribeSessions(bus *Bus, ch chan<- any) func() {
	return subscribeEnvelopes(bus, func(int64) bool { return true }, ch)
}

// SubscribeSession is SubscribeSessions restricted to one session, for
// clients following a single session until its completion.
func SubscribeSession(bus *Bus, sessionID int64, ch chan<- any) func() {
	return subscribeEnvelopes(bus, func(id int64) bool { return id == sessionID }, ch)
}

func subscribeEnvelopes(bus *Bus, match func(int64) bool, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e SessionEnvelope) {
		if !match(e.SessionID) {
			return
		}
		select {
		case ch <- e.Payload:
		default:
		}
	})
}
