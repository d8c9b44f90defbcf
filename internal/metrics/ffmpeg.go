// Package metrics provides Prometheus metrics for media engine sessions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ffmpegProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediaexec",
		Subsystem: "ffmpeg",
		Name:      "progress_percent",
		Help:      "Last reported progress of a session in percent",
	}, []string{"session_id"})

	ffmpegFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediaexec",
		Subsystem: "ffmpeg",
		Name:      "fps",
		Help:      "Current FFmpeg encoding FPS",
	}, []string{"session_id"})

	ffmpegSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediaexec",
		Subsystem: "ffmpeg",
		Name:      "processing_speed",
		Help:      "FFmpeg processing speed multiplier",
	}, []string{"session_id"})

	ffmpegFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediaexec",
		Subsystem: "ffmpeg",
		Name:      "frames",
		Help:      "Frames processed so far",
	}, []string{"session_id"})

	// Local cache for SSE exporter access.
	ffmpegCache   = make(map[string]*FFmpegSessionMetrics)
	ffmpegCacheMu sync.RWMutex
)

// FFmpegSessionMetrics holds current metric values for a session.
type FFmpegSessionMetrics struct {
	Progress float64
	FPS      float64
	Speed    float64
	Frames   float64
}

// SetFFmpegProgress sets the progress percentage for a session.
func SetFFmpegProgress(sessionID string, percent float64) {
	ffmpegProgress.WithLabelValues(sessionID).Set(percent)
	updateCache(sessionID, func(m *FFmpegSessionMetrics) { m.Progress = percent })
}

// SetFFmpegFPS sets the current FPS for a session.
func SetFFmpegFPS(sessionID string, fps float64) {
	ffmpegFPS.WithLabelValues(sessionID).Set(fps)
	updateCache(sessionID, func(m *FFmpegSessionMetrics) { m.FPS = fps })
}

// SetFFmpegSpeed sets the processing speed for a session.
func SetFFmpegSpeed(sessionID string, speed float64) {
	ffmpegSpeed.WithLabelValues(sessionID).Set(speed)
	updateCache(sessionID, func(m *FFmpegSessionMetrics) { m.Speed = speed })
}

// SetFFmpegFrames sets the processed frame count for a session.
func SetFFmpegFrames(sessionID string, frames float64) {
	ffmpegFrames.WithLabelValues(sessionID).Set(frames)
	updateCache(sessionID, func(m *FFmpegSessionMetrics) { m.Frames = frames })
}

// DeleteFFmpegMetrics removes all metrics for a session.
func DeleteFFmpegMetrics(sessionID string) {
	ffmpegProgress.DeleteLabelValues(sessionID)
	ffmpegFPS.DeleteLabelValues(sessionID)
	ffmpegSpeed.DeleteLabelValues(sessionID)
	ffmpegFrames.DeleteLabelValues(sessionID)

	ffmpegCacheMu.Lock()
	delete(ffmpegCache, sessionID)
	ffmpegCacheMu.Unlock()
}

// GetFFmpegMetrics returns current metric values for a session.
func GetFFmpegMetrics(sessionID string) *FFmpegSessionMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	if m, ok := ffmpegCache[sessionID]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllFFmpegMetrics returns metrics for all sessions that reported any.
func GetAllFFmpegMetrics() map[string]*FFmpegSessionMetrics {
	ffmpegCacheMu.RLock()
	defer ffmpegCacheMu.RUnlock()
	result := make(map[string]*FFmpegSessionMetrics, len(ffmpegCache))
	for id, m := range ffmpegCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(sessionID string, update func(*FFmpegSessionMetrics)) {
	ffmpegCacheMu.Lock()
	defer ffmpegCacheMu.Unlock()
	m, ok := ffmpegCache[sessionID]
	if !ok {
		m = &FFmpegSessionMetrics{}
		ffmpegCache[sessionID] = m
	}
	update(m)
}
