package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from an ffmpeg output line.
// With -loglevel level+info ffmpeg prefixes lines with "[info] " or
// "[component @ 0x...] [level] ". The level tag is stripped, the component
// tag is kept. Lines without a recognizable level are reported as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if tag := line[1:end]; isLogLevel(tag) {
		return tag, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}

	return "info", line
}

// IsErrorLevel reports whether level is one ffmpeg uses for failures.
func IsErrorLevel(level string) bool {
	switch level {
	case "panic", "fatal", "error":
		return true
	}
	return false
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
