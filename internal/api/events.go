package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/mediaexec/internal/api/models"
	"github.com/smazurov/mediaexec/internal/events"
	"github.com/smazurov/mediaexec/internal/metrics/exporters"
)

func sessionEventTypes() map[string]any {
	return map[string]any{
		"connected":             models.ConnectedEvent{},
		"session-started":       events.SessionStartedEvent{},
		"session-state-changed": events.SessionStateChangedEvent{},
		"session-output":        events.SessionOutputEvent{},
		"session-error":         events.SessionErrorEvent{},
		"session-progress":      events.SessionProgressEvent{},
		"session-completed":     events.SessionCompletedEvent{},
	}
}

// registerSSERoutes registers the session event streams.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time lifecycle, output and progress events for all sessions",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sessionEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 256)
		unsubscribe := events.SubscribeSessions(s.eventBus, eventCh)
		defer unsubscribe()

		streamEvents(ctx, send.Data, eventCh)
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "session-events-stream",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{session_id}/events",
		Summary:     "Session Event Stream",
		Description: "Events of a single session. The stream ends after session-completed, or at once if the session is not live.",
		Tags:        []string{"events", "sessions"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sessionEventTypes(), func(ctx context.Context, input *models.SessionIDInput, send sse.Sender) {
		eventCh := make(chan any, 256)
		unsubscribe := events.SubscribeSession(s.eventBus, input.SessionID, eventCh)
		defer unsubscribe()

		if _, ok := s.manager.Session(input.SessionID); !ok {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		streamEvents(ctx, func(ev any) error {
			if err := send.Data(ev); err != nil {
				return err
			}
			if _, done := ev.(events.SessionCompletedEvent); done {
				cancel()
			}
			return nil
		}, eventCh)
	})
}

// registerMetricsRoutes registers the metrics event stream fed by the SSE
// exporter.
func (s *Server) registerMetricsRoutes() {
	types := map[string]any{"connected": models.ConnectedEvent{}}
	maps.Copy(types, exporters.EventTypes())

	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Server-Sent Events Stream",
		Description: "Periodic ffmpeg progress metrics per session",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, types, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)
		unsubscribe := events.SubscribeToChannel[events.SessionMetricsEvent](s.eventBus, eventCh)
		defer unsubscribe()

		streamEvents(ctx, send.Data, eventCh)
	})
}

// streamEvents sends the connection handshake and then forwards eventCh
// until ctx ends or a write fails.
func streamEvents(ctx context.Context, send func(any) error, eventCh <-chan any) {
	if err := send(models.ConnectedEvent{
		Message:   "SSE connection established",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventCh:
			if err := send(ev); err != nil {
				return
			}
		}
	}
}
