package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/mediaexec/cmd"
	"github.com/smazurov/mediaexec/internal/api"
	"github.com/smazurov/mediaexec/internal/config"
	"github.com/smazurov/mediaexec/internal/events"
	"github.com/smazurov/mediaexec/internal/logging"
	"github.com/smazurov/mediaexec/internal/metrics/exporters"
	"github.com/smazurov/mediaexec/internal/process"
	"github.com/smazurov/mediaexec/internal/systemd"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings; protected routes answer 401 while either is empty
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Engine settings
	FFmpegPath      string        `help:"ffmpeg binary, defaults to ffmpeg on PATH" toml:"engine.ffmpeg_path" env:"ENGINE_FFMPEG_PATH"`
	AllowedBinaries string        `help:"Comma separated absolute paths API clients may run besides ffmpeg" toml:"engine.allowed_binaries" env:"ENGINE_ALLOWED_BINARIES"`
	EngineName      string        `help:"argv[0] for in-process sessions" default:"ffmpeg" toml:"engine.name" env:"ENGINE_NAME"`
	PollInterval    time.Duration `help:"Readiness wait per monitor cycle" default:"100ms" toml:"engine.poll_interval" env:"ENGINE_POLL_INTERVAL"`
	ReadBufferSize  int           `help:"Largest chunk read from a pipe" default:"4096" toml:"engine.read_buffer_size" env:"ENGINE_READ_BUFFER_SIZE"`
	KillTimeout     time.Duration `help:"Grace period before SIGKILL after cancel, negative disables" default:"5s" toml:"engine.kill_timeout" env:"ENGINE_KILL_TIMEOUT"`

	// Metrics settings
	MetricsPrometheus  bool          `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEInterval time.Duration `help:"Interval of the metrics event stream" default:"1s" toml:"metrics.sse_interval" env:"METRICS_SSE_INTERVAL"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingProcess string `help:"Session manager logging level" default:"info" toml:"logging.process" env:"LOGGING_PROCESS"`
	LoggingFFmpeg  string `help:"ffmpeg output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"process": o.LoggingProcess,
			"ffmpeg":  o.LoggingFFmpeg,
			"api":     o.LoggingAPI,
			"http":    o.LoggingHTTP,
		},
	}
}

func (o *Options) managerOptions() *process.ManagerOptions {
	return &process.ManagerOptions{
		EngineName:     o.EngineName,
		PollInterval:   o.PollInterval,
		ReadBufferSize: o.ReadBufferSize,
		KillTimeout:    o.KillTimeout,
		Logger:         logging.GetLogger("process"),
		EngineLogger:   logging.GetLogger("ffmpeg"),
	}
}

// splitList parses a comma separated option, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	var cli humacli.CLI
	var loaded *Options

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		logging.Initialize(opts.loggingConfig())
		loaded = opts

		logger := logging.GetLogger("main")

		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		managerOpts := opts.managerOptions()
		managerOpts.OnStart = func(info process.Info) {
			eventBus.Publish(events.SessionStartedEvent{
				SessionID: info.ID,
				Mode:      string(info.Mode),
				PID:       info.PID,
				Binary:    info.Binary,
				Command:   info.Command,
				Timestamp: info.StartedAt.UTC().Format(time.RFC3339Nano),
			})
		}
		managerOpts.OnStateChange = func(id int64, oldState, newState process.State) {
			eventBus.Publish(events.SessionStateChangedEvent{
				SessionID: id,
				OldState:  string(oldState),
				NewState:  string(newState),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
		manager := process.NewManager(managerOpts)

		binary, binErr := cmd.ResolveBinary(opts.FFmpegPath)
		if binErr != nil {
			logger.Warn("No default ffmpeg binary, requests must name an allowed one", "error", binErr)
		}
		if opts.AuthUsername == "" || opts.AuthPassword == "" {
			logger.Warn("Auth credentials not set, protected routes will answer 401")
		}

		apiOpts := &api.Options{
			AuthUsername:    opts.AuthUsername,
			AuthPassword:    opts.AuthPassword,
			DefaultBinary:   binary,
			AllowedBinaries: splitList(opts.AllowedBinaries),
			Manager:         manager,
			EventBus:        eventBus,
		}
		if opts.MetricsPrometheus {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		sseExporter := exporters.NewSSEExporter(eventBus, opts.MetricsSSEInterval)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		watchdogCtx, stopWatchdog := context.WithCancel(context.Background())

		watcher := config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, logger)
		watcher.OnReload(func(cfg logging.Config) {
			logger.Info("Applying logging levels from config", "level", cfg.Level)
			logging.SetLevels(cfg)
		})

		hooks.OnStart(func() {
			sseExporter.Start(context.Background())

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start config watcher, hot-reload disabled", "error", startErr)
			}

			notifier.Ready()
			go notifier.RunWatchdog(watchdogCtx, func() string {
				return fmt.Sprintf("%d sessions running", manager.RunningCount())
			})

			logger.Info("Starting HTTP server", "port", opts.Port, "ffmpeg", binary)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			stopWatchdog()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if stopErr := server.Stop(ctx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Sessions are stopped after the server stops accepting new ones.
			logger.Info("Cancelling all sessions", "running", manager.RunningCount())
			if closeErr := manager.Close(ctx); closeErr != nil {
				logger.Error("Sessions did not exit in time", "error", closeErr)
			}

			sseExporter.Stop()
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	newRuntime := func(_ *cobra.Command) (*cmd.Runtime, error) {
		binary, err := cmd.ResolveBinary(loaded.FFmpegPath)
		if err != nil {
			return nil, err
		}
		return &cmd.Runtime{
			Manager: process.NewManager(loaded.managerOptions()),
			Binary:  binary,
		}, nil
	}

	cli.Root().Use = "mediaexec"
	cli.Root().AddCommand(cmd.CreateRunCmd(newRuntime))
	cli.Root().AddCommand(cmd.CreateExecCmd(newRuntime))

	cli.Run()
}
