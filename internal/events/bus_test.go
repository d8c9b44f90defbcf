package events

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionStartedEvent, 1)

	unsub := bus.Subscribe(func(e SessionStartedEvent) {
		received <- e
	})
	defer unsub()

	ev := SessionStartedEvent{
		SessionID: 1,
		Mode:      "subprocess",
		Binary:    "/usr/bin/ffmpeg",
		Command:   "-version",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got != ev {
		t.Errorf("got %+v, want %+v", got, ev)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionCompletedEvent, 1)
	received2 := make(chan SessionCompletedEvent, 1)

	unsub1 := bus.Subscribe(func(e SessionCompletedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e SessionCompletedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(SessionCompletedEvent{SessionID: 3, ExitCode: 0})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionErrorEvent, 1)

	unsub := bus.Subscribe(func(e SessionErrorEvent) { received <- e })

	bus.Publish(SessionErrorEvent{SessionID: 1, Data: "first"})
	<-received

	unsub()

	bus.Publish(SessionErrorEvent{SessionID: 1, Data: "second"})
	select {
	case <-received:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	outputReceived := make(chan bool, 1)
	errorReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ SessionOutputEvent) { outputReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ SessionErrorEvent) { errorReceived <- true })
	defer unsub2()

	bus.Publish(SessionOutputEvent{SessionID: 1, Data: "out"})
	<-outputReceived

	select {
	case <-errorReceived:
		t.Fatal("error subscriber should not receive SessionOutputEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ SessionProgressEvent) { receivedCh <- true })
	defer unsub()

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SessionProgressEvent{SessionID: id, Percent: 50})
			}
		}(int64(i + 1))
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected no-op unsubscribe, got nil")
	}
	unsub()
}

func TestEventJSONSerialization(t *testing.T) {
	data, err := json.Marshal(SessionStartedEvent{SessionID: 9, Mode: "inprocess", Command: "-version"})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if result["session_id"] != float64(9) {
		t.Errorf("session_id = %v, want 9", result["session_id"])
	}
	if _, ok := result["pid"]; ok {
		t.Error("pid should be omitted for in-process sessions")
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[SessionOutputEvent](bus, ch)
	defer unsub()

	bus.Publish(SessionOutputEvent{SessionID: 4, Data: "hello"})

	received := <-ch
	ev, ok := received.(SessionOutputEvent)
	if !ok {
		t.Fatalf("expected SessionOutputEvent, got %T", received)
	}
	if ev.Data != "hello" {
		t.Errorf("Data = %q, want hello", ev.Data)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[SessionCompletedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SessionCompletedEvent{SessionID: 1})
		done <- true
	}()

	<-done
}

func TestSubscribeSessionFilters(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeSession(bus, 2, ch)
	defer unsub()

	bus.Publish(SessionOutputEvent{SessionID: 1, Data: "other"})
	bus.Publish(SessionOutputEvent{SessionID: 2, Data: "mine"})

	select {
	case got := <-ch:
		ev, ok := got.(SessionOutputEvent)
		if !ok || ev.Data != "mine" {
			t.Errorf("got %+v, want output for session 2", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session event")
	}

	select {
	case got := <-ch:
		t.Errorf("unexpected event %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeSessionPreservesOrderAcrossTypes(t *testing.T) {
	const outputs = 200

	for trial := range 20 {
		bus := New()
		ch := make(chan any, outputs*2+8)
		unsub := SubscribeSession(bus, 7, ch)

		obs := NewBusObserver(bus)
		obs.BindSession(7)
		for i := range outputs {
			obs.OnOutput(strconv.Itoa(i))
			if i%10 == 0 {
				obs.OnError("e" + strconv.Itoa(i))
			}
		}
		obs.OnComplete(0)

		next := 0
		timeout := time.After(2 * time.Second)
	collect:
		for {
			select {
			case got := <-ch:
				switch ev := got.(type) {
				case SessionOutputEvent:
					if ev.Data != strconv.Itoa(next) {
						t.Fatalf("trial %d: output %q, want %d", trial, ev.Data, next)
					}
					next++
				case SessionErrorEvent:
					if want := "e" + strconv.Itoa(next-1); ev.Data != want {
						t.Fatalf("trial %d: error %q after output %d, want %q", trial, ev.Data, next-1, want)
					}
				case SessionCompletedEvent:
					break collect
				}
			case <-timeout:
				t.Fatalf("trial %d: timeout after %d outputs", trial, next)
			}
		}
		unsub()

		if next != outputs {
			t.Fatalf("trial %d: completion after %d outputs, want %d", trial, next, outputs)
		}
	}
}

func TestSubscribeSessionsSeesEverySession(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)
	unsub := SubscribeSessions(bus, ch)
	defer unsub()

	bus.Publish(SessionStartedEvent{SessionID: 1})
	bus.Publish(SessionCompletedEvent{SessionID: 2})
	bus.Publish(SessionMetricsEvent{SessionID: "1"})

	for _, want := range []int64{1, 2} {
		select {
		case got := <-ch:
			var id int64
			switch ev := got.(type) {
			case SessionStartedEvent:
				id = ev.SessionID
			case SessionCompletedEvent:
				id = ev.SessionID
			}
			if id != want {
				t.Errorf("got %+v, want event for session %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for session event")
		}
	}

	select {
	case got := <-ch:
		t.Errorf("metrics events are not session envelopes, got %+v", got)
	case <-time.After(20 * time.Millisecond):
	}
}
