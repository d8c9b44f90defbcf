// Package logging provides structured logging with per-module log levels
// that can be changed while the process runs.
//
// Loggers come from GetLogger and are cached per module. Each module has
// its own slog.LevelVar; SetLevels updates them in place, so a config reload
// takes effect without recreating loggers.
//
// Records go to stdout (text or json), to the systemd journal when
// journald is reachable, and to an in-memory RingBuffer that backs the
// log history endpoint and live log events.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ffmpeg":  "debug",
//			"process": "info",
//		},
//	})
//
//	logger := logging.GetLogger("process").With("session_id", id)
//	logger.Info("Session started")
//
// Journal entries are tagged with SyslogIdentifier:
//
//	journalctl -t mediaexec MODULE=process
package logging
