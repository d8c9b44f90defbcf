package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediaexec",
		Subsystem: "sessions",
		Name:      "started_total",
		Help:      "Sessions registered, by execution mode",
	}, []string{"mode"})

	sessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediaexec",
		Subsystem: "sessions",
		Name:      "finished_total",
		Help:      "Sessions that reached a terminal state",
	}, []string{"mode", "state"})

	sessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediaexec",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently in the registry",
	}, []string{"mode"})

	sessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediaexec",
		Subsystem: "sessions",
		Name:      "duration_seconds",
		Help:      "Wall time from start to terminal state",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"mode"})

	spawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediaexec",
		Subsystem: "sessions",
		Name:      "spawn_failures_total",
		Help:      "Execute calls rejected before a session was registered",
	}, []string{"mode"})
)

// SessionStarted records a newly registered session.
func SessionStarted(mode string) {
	sessionsStarted.WithLabelValues(mode).Inc()
	sessionsActive.WithLabelValues(mode).Inc()
}

// SessionFinished records a session leaving the registry.
func SessionFinished(mode, state string, d time.Duration) {
	sessionsFinished.WithLabelValues(mode, state).Inc()
	sessionsActive.WithLabelValues(mode).Dec()
	sessionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// SpawnFailed records a configuration error.
func SpawnFailed(mode string) {
	spawnFailures.WithLabelValues(mode).Inc()
}
