package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"flowcanvas/internal/domain"
	"flowcanvas/internal/events"
	"flowcanvas/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo           repo.Repo
	Events         events.Writer
	BasePath       string
	AllowedOrigins []string
	DefaultName    string
	Logger         *slog.Logger
	Now            func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"process not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the FlowCanvas process API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultName == "" {
		cfg.DefaultName = "Untitled Process"
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
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
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	hcfg := huma.DefaultConfig("FlowCanvas API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerRoot(group)
	registerHealth(group)
	registerProcesses(group, cfg)
	registerExport(router, basePath, cfg)
	registerStatusChecks(group, cfg)
	registerEvents(group, cfg)
	registerOpenAPI(router, api, basePath)

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
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", "process not found", nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerRoot(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "service-info",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service info",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"message": "FlowCanvas Process API"}}, nil
	})
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

func registerProcesses(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-process",
		Method:        http.MethodPost,
		Path:          "/processes",
		Summary:       "Create process",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProcessRequest `json:"body"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		name := strings.TrimSpace(input.Body.Name)
		if name == "" {
			name = cfg.DefaultName
		}
		now := cfg.Now().UTC().Format(time.RFC3339)
		p := domain.Process{
			ID:          uuid.NewString(),
			Name:        name,
			Description: stringOrEmpty(input.Body.Description),
			DiagramXML:  stringOrEmpty(input.Body.DiagramXML),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.InsertProcessTx(ctx, tx, p); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, events.TypeProcessCreated, p.ID, events.EventPayload{"name": p.Name}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		cfg.Logger.Info("created process", "id", p.ID, "name", p.Name)
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List processes",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"100"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedProcesses `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorUpdated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := cfg.Repo.ListProcesses(ctx, repo.ProcessFilters{
			Limit:           limit + 1,
			CursorUpdatedAt: cursorUpdated,
			CursorID:        cursorID,
		})
		if err != nil {
			cfg.Logger.Error("list processes", "error", err)
			return nil, handleError(err)
		}
		resp := paginatedProcesses{Items: []ProcessResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].UpdatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapProcesses(items)
		return &struct {
			Body paginatedProcesses `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{id}",
		Summary:     "Get process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		p, err := cfg.Repo.GetProcess(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-process",
		Method:      http.MethodPut,
		Path:        "/processes/{id}",
		Summary:     "Update process",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdateProcessRequest `json:"body"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		name := strings.TrimSpace(input.Body.Name)
		if name == "" {
			name = cfg.DefaultName
		}
		p := domain.Process{
			ID:          input.ID,
			Name:        name,
			Description: stringOrEmpty(input.Body.Description),
			DiagramXML:  stringOrEmpty(input.Body.DiagramXML),
			UpdatedAt:   cfg.Now().UTC().Format(time.RFC3339),
		}
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.UpdateProcessTx(ctx, tx, p); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, events.TypeProcessUpdated, p.ID, events.EventPayload{"name": p.Name}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		updated, err := cfg.Repo.GetProcess(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		cfg.Logger.Info("updated process", "id", updated.ID, "name", updated.Name)
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-process",
		Method:        http.MethodDelete,
		Path:          "/processes/{id}",
		Summary:       "Delete process",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.DeleteProcessTx(ctx, tx, input.ID); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, events.TypeProcessDeleted, input.ID, nil); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		cfg.Logger.Info("deleted process", "id", input.ID)
		return &struct{}{}, nil
	})
}

// registerExport serves the diagram as a file attachment. Registered on the
// chi router directly so the raw XML body and Content-Disposition header are
// not wrapped in the JSON envelope.
func registerExport(r chi.Router, basePath string, cfg Config) {
	r.Get(path.Join(basePath, "processes/{id}/export"), func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		p, err := cfg.Repo.GetProcess(req.Context(), id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeErrorJSON(w, http.StatusNotFound, "not_found", "process not found")
				return
			}
			cfg.Logger.Error("export process", "id", id, "error", err)
			writeErrorJSON(w, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		if p.DiagramXML == "" {
			writeErrorJSON(w, http.StatusNotFound, "not_found", "process has no diagram content")
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ExportFilename(p.Name)))
		io.WriteString(w, p.DiagramXML)
	})
}

// ExportFilename derives a safe attachment name from a process name.
func ExportFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "-", "\\", "-", "\"", "", "\x00", "")
	name = replacer.Replace(name)
	if name == "" {
		name = "process"
	}
	return name + ".bpmn"
}

func registerStatusChecks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-status-check",
		Method:        http.MethodPost,
		Path:          "/status",
		Summary:       "Record a status check",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateStatusCheckRequest `json:"body"`
	}) (*struct {
		Body StatusCheckResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.ClientName) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "client_name is required", nil)
		}
		sc := domain.StatusCheck{
			ID:         uuid.NewString(),
			ClientName: input.Body.ClientName,
			Timestamp:  cfg.Now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.InsertStatusCheck(ctx, sc); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusCheckResponse `json:"body"`
		}{Body: statusCheckResponse(sc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-status-checks",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "List status checks",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"100"`
	}) (*struct {
		Body []StatusCheckResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListStatusChecks(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]StatusCheckResponse, 0, len(items))
		for _, sc := range items {
			res = append(res, statusCheckResponse(sc))
		}
		return &struct {
			Body []StatusCheckResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit" default:"50"`
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]EventResponse, 0, len(items))
		for _, e := range items {
			res = append(res, eventResponse(e))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>FlowCanvas API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 500:
		return 500
	default:
		return limit
	}
}

func composeCursor(updatedAt, id string) string {
	return updatedAt + "|" + id
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	updatedAt, id, ok := strings.Cut(cursor, "|")
	if !ok || updatedAt == "" || id == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return updatedAt, id, nil
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
