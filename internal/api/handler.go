// Package api exposes the pipeline over HTTP. It is a thin transport:
// all policy lives in the pipeline and the session channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlbridge/sqlbridge/internal/config"
	"github.com/sqlbridge/sqlbridge/internal/observability"
	"github.com/sqlbridge/sqlbridge/internal/pipeline"
	"github.com/sqlbridge/sqlbridge/internal/toolproto"
)

type ReadinessCheck func(ctx context.Context) error

// PipelineService is the slice of the orchestrator the HTTP layer uses.
type PipelineService interface {
	Schema(ctx context.Context) (toolproto.SchemaSnapshot, error)
	Execute(ctx context.Context, statement string) (toolproto.ResultSet, error)
	Translate(ctx context.Context, question string) (string, int, error)
	Run(ctx context.Context, question string) (pipeline.RunResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Pipeline          PipelineService
	Readiness         ReadinessCheck
	SessionLive       func() bool
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{"status": "ok", "service": cfg.Service.Name}
		if deps.SessionLive != nil {
			payload["tool_session"] = deps.SessionLive()
		}
		writeJSON(w, http.StatusOK, payload)
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, toolproto.KindSessionUnavailable, err.Error(), true)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/execute", func(w http.ResponseWriter, r *http.Request) {
		handleExecute(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleRun(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, toolproto.KindInternal, "auth middleware is required by configuration", false)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/schema", protectedHandler)
	mux.Handle("POST /v1/translate", protectedHandler)
	mux.Handle("POST /v1/execute", protectedHandler)
	mux.Handle("POST /v1/query", protectedHandler)

	return observability.Instrument(deps.Logger)(mux)
}

// CheckSession reports readiness as the ability to hold a tool session.
func CheckSession(acquire func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if acquire == nil {
			return errors.New("session channel is not configured")
		}
		return acquire(ctx)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, kind, message string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"error_kind": kind,
		"message":    message,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writeKindError maps an error kind onto an HTTP status and emits the
// standard error envelope.
func writeKindError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := toolproto.KindOf(err)
	message := err.Error()
	var desc *toolproto.ErrorDescriptor
	if errors.As(err, &desc) {
		message = desc.Message
	}

	status := http.StatusInternalServerError
	retryable := false
	switch kind {
	case toolproto.KindValidation, toolproto.KindSyntax:
		status = http.StatusBadRequest
	case toolproto.KindPermission:
		status = http.StatusForbidden
	case toolproto.KindGenerationPolicy:
		status = http.StatusUnprocessableEntity
	case toolproto.KindConnection, toolproto.KindGenerationService:
		status = http.StatusBadGateway
		retryable = true
	case toolproto.KindSessionUnavailable:
		status = http.StatusServiceUnavailable
		retryable = true
	case toolproto.KindTimeout:
		status = http.StatusGatewayTimeout
		retryable = true
	}
	writeError(ctx, w, status, kind, message, retryable)
}
