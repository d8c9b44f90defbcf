package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediaexec/internal/api/models"
	"github.com/smazurov/mediaexec/internal/events"
	"github.com/smazurov/mediaexec/internal/process"
)

// sessionBinary picks the executable for a subprocess request. Only the
// configured ffmpeg and the allow-listed binaries may be named.
func (s *Server) sessionBinary(requested string) (string, error) {
	if requested == "" {
		if s.options.DefaultBinary == "" {
			return "", huma.Error422UnprocessableEntity("no binary given and no default ffmpeg configured")
		}
		return s.options.DefaultBinary, nil
	}

	want := filepath.Clean(requested)
	if s.options.DefaultBinary != "" && want == filepath.Clean(s.options.DefaultBinary) {
		return requested, nil
	}
	for _, allowed := range s.options.AllowedBinaries {
		if want == filepath.Clean(allowed) {
			return requested, nil
		}
	}
	return "", huma.Error403Forbidden("binary " + strconv.Quote(requested) + " is not allowed")
}

// registerSessionRoutes registers the session lifecycle endpoints.
func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/sessions",
		Summary:       "Start Session",
		Description:   "Start an ffmpeg session. Output, progress and completion are published on the event stream.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 403, 422, 503},
		Security:      withAuth(),
	}, func(_ context.Context, input *models.SessionCreateRequest) (*models.SessionCreatedResponse, error) {
		binary := ""
		if input.Body.Mode != models.ModeInProcess {
			var err error
			if binary, err = s.sessionBinary(input.Body.Binary); err != nil {
				return nil, err
			}
		}

		obs := events.NewBusObserver(s.eventBus)
		var id int64
		var err error
		if len(input.Body.Args) > 0 {
			id, err = s.manager.ExecuteArgs(binary, input.Body.Args, obs)
		} else {
			id, err = s.manager.Execute(binary, input.Body.Command, obs)
		}
		if err != nil {
			return nil, mapSessionError(err)
		}

		return &models.SessionCreatedResponse{
			Body: models.SessionCreatedData{SessionID: id},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/api/sessions",
		Summary:     "List Sessions",
		Description: "List live sessions. Finished sessions are not retained.",
		Tags:        []string{"sessions"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.SessionListResponse, error) {
		infos := s.manager.Sessions()
		now := time.Now()
		list := make([]models.SessionData, len(infos))
		for i, info := range infos {
			list[i] = toSessionData(info, now)
		}
		return &models.SessionListResponse{
			Body: models.SessionListData{Sessions: list, Count: len(list)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{session_id}",
		Summary:     "Get Session",
		Description: "Get a snapshot of a live session",
		Tags:        []string{"sessions"},
		Errors:      []int{401, 404},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.SessionIDInput) (*models.SessionResponse, error) {
		info, ok := s.manager.Session(input.SessionID)
		if !ok {
			return nil, huma.Error404NotFound("session not found")
		}
		return &models.SessionResponse{Body: toSessionData(info, time.Now())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-session",
		Method:      http.MethodDelete,
		Path:        "/api/sessions/{session_id}",
		Summary:     "Cancel Session",
		Description: "Request termination of a session. cancelled is false when the session is unknown or already finishing.",
		Tags:        []string{"sessions"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, input *models.SessionIDInput) (*models.CancelResponse, error) {
		return &models.CancelResponse{
			Body: models.CancelData{Cancelled: s.manager.Cancel(input.SessionID)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "cancel-all-sessions",
		Method:      http.MethodDelete,
		Path:        "/api/sessions",
		Summary:     "Cancel All Sessions",
		Description: "Request termination of every live session",
		Tags:        []string{"sessions"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*models.CancelAllResponse, error) {
		n := s.manager.RunningCount()
		s.manager.CancelAll()
		return &models.CancelAllResponse{
			Body: models.CancelAllData{Requested: n},
		}, nil
	})
}

func toSessionData(info process.Info, now time.Time) models.SessionData {
	return models.SessionData{
		SessionID:  info.ID,
		State:      string(info.State),
		Mode:       string(info.Mode),
		PID:        info.PID,
		Binary:     info.Binary,
		Command:    info.Command,
		StartedAt:  info.StartedAt,
		Uptime:     now.Sub(info.StartedAt).Seconds(),
		Progress:   info.Progress,
		LastOutput: info.LastOutput,
	}
}

// mapSessionError maps manager errors to HTTP errors.
func mapSessionError(err error) error {
	var spawnErr *process.SpawnError
	switch {
	case errors.Is(err, process.ErrManagerClosed):
		return huma.Error503ServiceUnavailable("session manager is shutting down", err)
	case errors.Is(err, process.ErrNotExecutable):
		return huma.Error422UnprocessableEntity("binary is not an executable file", err)
	case errors.Is(err, process.ErrNoEngine):
		return huma.Error422UnprocessableEntity("no in-process engine available", err)
	case errors.As(err, &spawnErr):
		return huma.Error422UnprocessableEntity("failed to start session", err)
	default:
		return huma.Error500InternalServerError("internal server error", err)
	}
}
