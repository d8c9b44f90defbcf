package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"
)

// LogCallback is called for each entry written to the ring buffer.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that records into a RingBuffer and hands
// each stored entry to the callback returned by callbackFn, if any.
type BufferHandler struct {
	buffer     *RingBuffer
	level      slog.Leveler
	module     string
	attrs      map[string]any // flattened as they were added
	groups     []string
	callbackFn func() LogCallback
}

// NewBufferHandler creates a handler that writes to the given ring buffer.
// callbackFn is consulted on every record so the callback can be swapped
// after the handler is built. It may be nil.
func NewBufferHandler(buffer *RingBuffer, level slog.Leveler, callbackFn func() LogCallback) *BufferHandler {
	return &BufferHandler{buffer: buffer, level: level, module: "app", callbackFn: callbackFn}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := maps.Clone(h.attrs)
	if attrs == nil {
		attrs = make(map[string]any)
	}
	module := h.module
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(h.groups) == 0 {
			module = a.Value.String()
		} else {
			flattenAttr(attrs, h.groups, a)
		}
		return true
	})

	stored := h.buffer.Write(LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	})

	if h.callbackFn != nil {
		if cb := h.callbackFn(); cb != nil {
			cb(stored)
		}
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = maps.Clone(h.attrs)
	if clone.attrs == nil {
		clone.attrs = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		if a.Key == "module" && len(h.groups) == 0 {
			clone.module = a.Value.String()
			continue
		}
		flattenAttr(clone.attrs, h.groups, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// flattenAttr stores a into attrs using dot-joined group keys.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	value := a.Value.Resolve()
	switch value.Kind() {
	case slog.KindGroup:
		nested := append(slices.Clone(groups), a.Key)
		for _, ga := range value.Group() {
			flattenAttr(attrs, nested, ga)
		}
	case slog.KindTime:
		attrs[key] = value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = value.Duration().String()
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = value.Any()
		}
	default:
		attrs[key] = value.Any()
	}
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine renders an entry as a single line, attributes sorted by key.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	sb.WriteString(entry.Timestamp.Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, " [%s] [%s] %s", strings.ToUpper(entry.Level), entry.Module, entry.Message)

	keys := make([]string, 0, len(entry.Attributes))
	for k := range entry.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
