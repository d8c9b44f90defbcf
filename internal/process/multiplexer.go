package process

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/mediaexec/internal/ffmpeg"
	"github.com/smazurov/mediaexec/internal/metrics"
)

// maxPendingLine caps the partial line kept per stream for logging and
// progress parsing. Observers always get the raw chunks.
const maxPendingLine = 64 * 1024

// multiplexer is the Sink of one session. It forwards chunks to the
// observer, splits them into lines for the ffmpeg logger and the progress
// parser, and shuts the observer off exactly once in complete.
type multiplexer struct {
	session   *Session
	logger    *slog.Logger
	engineLog *slog.Logger
	metricsID string

	mu       sync.Mutex
	observer Observer
	parser   *ffmpeg.ProgressParser // nil when the engine reports progress itself
	pending  [2]strings.Builder
	closed   bool
}

func newMultiplexer(s *Session, obs Observer, parseProgress bool, logger, engineLog *slog.Logger) *multiplexer {
	m := &multiplexer{
		session:   s,
		logger:    logger,
		engineLog: engineLog.With("session_id", s.id),
		metricsID: strconv.FormatInt(s.id, 10),
		observer:  obs,
	}
	if parseProgress {
		m.parser = ffmpeg.NewProgressParser(0)
	}
	return m
}

// Write implements Sink.
func (m *multiplexer) Write(stream Stream, text string) {
	if text == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if obs := m.observer; obs != nil {
		if stream == Stderr {
			safeCall(m.logger, "OnError", func() { obs.OnError(text) })
		} else {
			safeCall(m.logger, "OnOutput", func() { obs.OnOutput(text) })
		}
	}

	m.splitLines(stream, text)
}

// Progress implements Sink.
func (m *multiplexer) Progress(percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.emitProgress(min(max(percent, 0), 100))
}

// complete flushes partial lines, delivers OnComplete and then drops the
// observer. Anything written afterwards is discarded.
func (m *multiplexer) complete(exitCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	for s := range m.pending {
		m.flushPending(Stream(s))
	}
	m.closed = true

	if obs := m.observer; obs != nil {
		safeCall(m.logger, "OnComplete", func() { obs.OnComplete(exitCode) })
	}
	m.observer = nil
}

// splitLines must be called with mu held. ffmpeg rewrites its status line
// with \r, so both \r and \n end a line.
func (m *multiplexer) splitLines(stream Stream, text string) {
	buf := &m.pending[stream]
	for text != "" {
		i := strings.IndexAny(text, "\r\n")
		if i < 0 {
			buf.WriteString(text)
			if buf.Len() > maxPendingLine {
				m.flushPending(stream)
			}
			return
		}
		buf.WriteString(text[:i])
		m.flushPending(stream)
		text = text[i+1:]
	}
}

func (m *multiplexer) flushPending(stream Stream) {
	buf := &m.pending[stream]
	line := strings.TrimSpace(buf.String())
	buf.Reset()
	if line != "" {
		m.handleLine(stream, line)
	}
}

func (m *multiplexer) handleLine(stream Stream, line string) {
	m.session.setLastOutput(line)

	level, msg := ffmpeg.ParseLogLevel(line)
	m.engineLog.Log(context.Background(), engineLogLevel(level), msg, "stream", stream.String())

	if m.parser == nil {
		return
	}
	prog, ok := m.parser.Parse(line)
	if !ok {
		return
	}
	if prog.FPS > 0 {
		metrics.SetFFmpegFPS(m.metricsID, prog.FPS)
	}
	if prog.Speed > 0 {
		metrics.SetFFmpegSpeed(m.metricsID, prog.Speed)
	}
	if prog.Frame > 0 {
		metrics.SetFFmpegFrames(m.metricsID, float64(prog.Frame))
	}
	if prog.TotalDurationMs > 0 {
		m.emitProgress(prog.Percentage)
	}
}

func (m *multiplexer) emitProgress(percent float64) {
	m.session.setProgress(percent)
	metrics.SetFFmpegProgress(m.metricsID, percent)

	if obs := m.observer; obs != nil {
		msg := ffmpeg.FormatProgress(percent)
		safeCall(m.logger, "OnProgress", func() { obs.OnProgress(msg) })
	}
}

// engineLogLevel maps an ffmpeg level tag to slog. Everything below
// warning is debug: the banner and status lines are too chatty for info.
func engineLogLevel(level string) slog.Level {
	switch {
	case ffmpeg.IsErrorLevel(level):
		return slog.LevelError
	case level == "warning":
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
