// Package server exposes the dashboard engine over HTTP. Requests carry
// identity as a bearer session token; requests without one run as the
// guest identity.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"daydash/internal/domain"
	"daydash/internal/events"
	"daydash/internal/identity"
	"daydash/internal/lifecycle"
	"daydash/internal/publisher"
	"daydash/internal/settings"
	"daydash/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Store    *store.Store
	Settings *settings.Service
	Events   *events.Writer

	// Fetch retrieves one day of calendar events for an identity. Nil
	// disables the calendar endpoint.
	Fetch func(ctx context.Context, user *domain.UserProfile, dateKey string) ([]domain.CalendarRow, error)

	Now      func() time.Time
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"project is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the dashboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Daydash API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerAuth(group, cfg)
	registerTasks(group, cfg)
	registerLifecycle(group, cfg)
	registerSettings(group, cfg)
	registerCalendar(group, cfg)
	registerGuest(group, cfg)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrProjectRequired),
		errors.Is(err, store.ErrTitleRequired),
		errors.Is(err, store.ErrInvalidDate):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func (cfg Config) audit(evtType string, user *domain.UserProfile, entityID string, payload events.Payload) {
	if cfg.Events == nil {
		return
	}
	_ = cfg.Events.Append(evtType, identity.Key(user), entityID, payload)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Issue a session token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Email) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		user := domain.UserProfile{
			Name:    strings.TrimSpace(input.Body.Name),
			Email:   identity.NormalizeEmail(input.Body.Email),
			IconURL: strings.TrimSpace(input.Body.IconURL),
		}
		token, err := identity.IssueSessionToken(cfg.Auth.JWTSecret, user, cfg.Auth.ttl(), cfg.Now())
		if err != nil {
			return nil, handleError(err)
		}
		cfg.audit("session.issued", &user, "", nil)
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, User: user}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current identity",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{UserID: identity.Key(user), User: user}}, nil
	})
}

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks for a date",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Date string `query:"date" required:"true" pattern:"^\\d{4}-\\d{2}-\\d{2}$"`
	}) (*struct {
		Body domain.TaskListResponse `json:"body"`
	}, error) {
		list, err := cfg.Store.GetAllFor(profileFromContext(ctx), input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TaskListResponse `json:"body"`
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body domain.TaskCreateInput `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		task, err := cfg.Store.AddFor(user, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		cfg.audit("task.created", user, task.ID, events.Payload{"title": task.Title, "date": task.Date})
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string      `path:"task_id"`
		Body   domain.Task `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		task := input.Body
		task.ID = input.TaskID
		updated, err := cfg.Store.UpdateFor(user, task)
		if err != nil {
			return nil, handleError(err)
		}
		if updated == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task not found", nil)
		}
		cfg.audit("task.updated", user, updated.ID, nil)
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: *updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Remove task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body RemovedResponse `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		removed, err := cfg.Store.RemoveFor(user, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		if !removed {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task not found", nil)
		}
		cfg.audit("task.removed", user, input.TaskID, nil)
		return &struct {
			Body RemovedResponse `json:"body"`
		}{Body: RemovedResponse{Removed: true}}, nil
	})
}

func registerLifecycle(api huma.API, cfg Config) {
	type taskPath struct {
		TaskID string `path:"task_id"`
	}
	type taskOut struct {
		Body domain.Task `json:"body"`
	}

	apply := func(ctx context.Context, taskID string, evtType string, transition func(domain.Task, time.Time) domain.Task) (*taskOut, error) {
		user := profileFromContext(ctx)
		current, err := cfg.Store.FindFor(user, taskID)
		if err != nil {
			return nil, handleError(err)
		}
		if current == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task not found", nil)
		}
		next := transition(*current, cfg.Now())
		updated, err := cfg.Store.UpdateFor(user, next)
		if err != nil {
			return nil, handleError(err)
		}
		if updated == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task not found", nil)
		}
		cfg.audit(evtType, user, updated.ID, events.Payload{"status": updated.Status})
		return &taskOut{Body: *updated}, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "start-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/start",
		Summary:     "Start tracking",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOut, error) {
		return apply(ctx, input.TaskID, "task.started", lifecycle.Start)
	})

	huma.Register(api, huma.Operation{
		OperationID: "suspend-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/suspend",
		Summary:     "Suspend tracking",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOut, error) {
		return apply(ctx, input.TaskID, "task.suspended", lifecycle.Suspend)
	})

	huma.Register(api, huma.Operation{
		OperationID: "resume-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/resume",
		Summary:     "Resume tracking",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskOut, error) {
		return apply(ctx, input.TaskID, "task.resumed", lifecycle.Resume)
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/stop",
		Summary:     "Stop tracking",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string      `path:"task_id"`
		Body   StopRequest `json:"body"`
	}) (*taskOut, error) {
		status := input.Body.Status
		if status == "" {
			status = domain.StatusDone
		}
		switch status {
		case domain.StatusDone, domain.StatusCarryover, domain.StatusFinished:
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid stop status", nil)
		}
		return apply(ctx, input.TaskID, "task.stopped", func(task domain.Task, now time.Time) domain.Task {
			return lifecycle.Stop(task, now, status)
		})
	})
}

func registerSettings(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Get settings",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.AppSettings `json:"body"`
	}, error) {
		return &struct {
			Body domain.AppSettings `json:"body"`
		}{Body: cfg.Settings.LoadFor(profileFromContext(ctx))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-settings",
		Method:      http.MethodPut,
		Path:        "/settings",
		Summary:     "Replace settings",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body domain.AppSettings `json:"body"`
	}) (*struct {
		Body domain.AppSettings `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		saved, err := cfg.Settings.SaveFor(user, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		cfg.audit("settings.saved", user, "", nil)
		return &struct {
			Body domain.AppSettings `json:"body"`
		}{Body: saved}, nil
	})
}

func registerCalendar(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "fetch-calendar",
		Method:      http.MethodPost,
		Path:        "/calendar/fetch",
		Summary:     "Fetch one day of calendar events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body FetchRequest `json:"body"`
	}) (*struct {
		Body domain.CalendarUpdate `json:"body"`
	}, error) {
		user := profileFromContext(ctx)
		var update domain.CalendarUpdate
		pub := &publisher.Publisher{
			Resolve: func() *domain.UserProfile { return user },
			Fetch: func(fetchCtx context.Context, dateKey string) ([]domain.CalendarRow, error) {
				if cfg.Fetch == nil {
					return nil, errors.New("calendar provider not configured")
				}
				return cfg.Fetch(fetchCtx, user, dateKey)
			},
			Notify: func(u domain.CalendarUpdate) { update = u },
			Now:    cfg.Now,
			Logger: cfg.Auth.logger(),
		}
		rows := pub.FetchAndPublish(ctx, input.Body.Date, publisher.SourceManual)
		if update.UpdatedAt == "" {
			update = domain.CalendarUpdate{
				Events:    rows,
				UpdatedAt: cfg.Now().UTC().Format(time.RFC3339),
				Source:    publisher.SourceManual,
			}
		}
		cfg.audit("calendar.fetched", user, "", events.Payload{"date": input.Body.Date, "events": len(update.Events)})
		return &struct {
			Body domain.CalendarUpdate `json:"body"`
		}{Body: update}, nil
	})
}

func registerGuest(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "clear-guest-data",
		Method:      http.MethodDelete,
		Path:        "/guest-data",
		Summary:     "Erase guest task data",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := cfg.Store.ClearGuestData(); err != nil {
			return nil, handleError(err)
		}
		cfg.audit("guest.cleared", nil, "", nil)
		return &struct{}{}, nil
	})
}
