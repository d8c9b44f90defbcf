package exporters

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/mediaexec/internal/events"
	"github.com/smazurov/mediaexec/internal/metrics"
)

const defaultSSEInterval = time.Second

// EventPublisher is the part of the event bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter samples the per-session ffmpeg metrics cache on a ticker and
// publishes one SessionMetricsEvent per session.
type SSEExporter struct {
	bus      EventPublisher
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSSEExporter returns an exporter ticking every interval, or every
// second when interval is not positive.
func NewSSEExporter(bus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = defaultSSEInterval
	}
	return &SSEExporter{bus: bus, interval: interval}
}

// Start launches the export loop. It runs until ctx ends or Stop is called.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop ends the export loop and waits for it. Safe to call more than once.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *SSEExporter) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *SSEExporter) publish() {
	snapshot := metrics.GetAllFFmpegMetrics()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		m := snapshot[id]
		s.bus.Publish(events.SessionMetricsEvent{
			EventType: "session_metrics",
			SessionID: id,
			Progress:  strconv.FormatFloat(m.Progress, 'f', 1, 64),
			FPS:       strconv.FormatFloat(m.FPS, 'f', 2, 64),
			Speed:     strconv.FormatFloat(m.Speed, 'f', 2, 64),
			Frames:    strconv.FormatFloat(m.Frames, 'f', 0, 64),
		})
	}
}

// EventTypes maps the SSE event names this exporter produces to their payloads.
func EventTypes() map[string]any {
	return map[string]any{
		"session-metrics": events.SessionMetricsEvent{},
	}
}
