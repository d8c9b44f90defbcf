// Package api exposes the session manager over HTTP with Huma v2.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/mediaexec/internal/api/models"
	"github.com/smazurov/mediaexec/internal/events"
	"github.com/smazurov/mediaexec/internal/logging"
	"github.com/smazurov/mediaexec/internal/process"
	"github.com/smazurov/mediaexec/internal/version"
)

// SessionManager is the part of process.Manager the API drives.
type SessionManager interface {
	Execute(binary, command string, obs process.Observer) (int64, error)
	ExecuteArgs(binary string, args []string, obs process.Observer) (int64, error)
	Cancel(id int64) bool
	CancelAll()
	Session(id int64) (process.Info, bool)
	Sessions() []process.Info
	RunningCount() int
}

// Options configures the API server.
type Options struct {
	// AuthUsername and AuthPassword guard every route except health,
	// version and /metrics. Protected routes answer 401 while either is empty.
	AuthUsername string
	AuthPassword string

	// DefaultBinary is used for subprocess sessions that name no binary.
	DefaultBinary string

	// AllowedBinaries lists the executables a request may name besides
	// DefaultBinary. Any other binary is refused with 403.
	AllowedBinaries []string

	Manager  SessionManager
	EventBus *events.Bus

	// PrometheusHandler is served on GET /metrics without auth (optional).
	PrometheusHandler http.Handler
}

// Server is the HTTP API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	manager    SessionManager
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// NewServer builds the API on a fresh ServeMux and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("mediaexec API", version.String())
	config.Info.Description = "Start, observe and cancel ffmpeg sessions"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		manager:  opts.Manager,
		eventBus: opts.EventBus,
		options:  opts,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	api.UseMiddleware(basicAuthMiddleware(api, opts.AuthUsername, opts.AuthPassword))

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting mediaexec API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down, waiting for in-flight requests until ctx
// expires. SSE streams end when their request context is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:          "ok",
				Message:         "API is healthy",
				RunningSessions: s.manager.RunningCount(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerSessionRoutes()
	s.registerSSERoutes()
	s.registerMetricsRoutes()
	s.registerLogRoutes()
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
