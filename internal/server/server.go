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
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"touchline/internal/domain"
	"touchline/internal/engine"
	"touchline/internal/observability"
	"touchline/internal/repo"
)

// GameProxy forwards read-only game queries to the simulation backend.
type GameProxy interface {
	Raw(ctx context.Context, path string) (json.RawMessage, error)
	GameState(ctx context.Context) (map[string]json.RawMessage, error)
	PlayerState(ctx context.Context, id string) (domain.PlayerState, error)
}

// Config for the HTTP API handler.
type Config struct {
	Engine            *engine.Engine
	Game              GameProxy
	BasePath          string
	HeartbeatInterval time.Duration
	StreamBuffer      int
	Logger            *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"conversation 7c1d: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"characterId\"}"`
}

// apiError models the error envelope returned by every route.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the bridge API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Engine.Logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg, schemaErrorDetails(errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return huma.NewError(status, msg, errs...)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(observability.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(withCORS)
	hcfg := huma.DefaultConfig("Touchline Bridge API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group, cfg.Engine)
	registerAgent(group, cfg.Engine)
	registerStream(group, cfg)
	registerConversation(group, cfg.Engine)
	registerInbox(group, cfg.Engine)
	registerMemory(group, cfg.Engine)
	registerGame(group, cfg.Engine, cfg.Game)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

// schemaErrorDetails reports request schema failures the same way domain
// validation does: the first offending field plus every location.
func schemaErrorDetails(errs []error) map[string]any {
	var fields []map[string]string
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			fields = append(fields, map[string]string{"location": detail.Location, "message": detail.Message})
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return map[string]any{
		"field":  strings.TrimPrefix(fields[0]["location"], "body."),
		"errors": fields,
	}
}

// withCORS lets the browser client on another origin reach the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
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
	var ve domain.ValidationError
	if errors.As(err, &ve) {
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	switch {
	case errors.Is(err, repo.ErrInvalid):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

// upstreamError reports a failed simulation proxy call.
func upstreamError(err error) huma.StatusError {
	return newAPIError(http.StatusBadGateway, "upstream_unavailable", "simulation backend unavailable", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadGateway:
		return "upstream_unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	document := sync.OnceValue(func() []byte {
		oas := api.OpenAPI()
		annotateOperations(oas, basePath)
		b, _ := json.Marshal(oas)
		return b
	})
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(document())
	})
}

// annotateOperations tags each operation with its area (agent, conversation,
// inbox, memory, game) and gives it a default response carrying the error
// envelope.
func annotateOperations(oas *huma.OpenAPI, basePath string) {
	if oas == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	envelope := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for p, item := range oas.Paths {
		area, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimPrefix(p, basePath), "/"), "/")
		for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
			if op == nil {
				continue
			}
			if area != "" && !domain.Contains(op.Tags, area) {
				op.Tags = append(op.Tags, area)
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			if _, ok := op.Responses["default"]; ok {
				continue
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: envelope},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Touchline Bridge API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui',
          tagsSorter: 'alpha',
          docExpansion: 'list'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		health := HealthResponse{
			Status:     "ok",
			Timestamp:  e.Now().UTC(),
			Simulation: e.SimulationStatus(ctx),
		}
		if at := e.LastRefresh(); !at.IsZero() {
			at = at.UTC()
			health.LastRefresh = &at
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: health}, nil
	})
}
