package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/store"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// Every route except GET /api/health and GET /metrics requires an
// authenticated caller; see Authenticator.
func (s *GatesServer) NewHTTPHandler(auth *Authenticator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/initiatives", s.handleCreateInitiative)
	mux.HandleFunc("GET /api/initiatives", s.handleListInitiatives)
	mux.HandleFunc("GET /api/initiatives/{id}", s.handleGetInitiative)
	mux.HandleFunc("DELETE /api/initiatives/{id}", s.handleDeleteInitiative)
	mux.HandleFunc("GET /api/initiatives/{id}/events", s.handleGetEvents)

	mux.HandleFunc("GET /api/initiatives/{id}/status", s.handleGetStatus)
	mux.HandleFunc("PUT /api/initiatives/{id}/status", s.handleSetStatus)

	mux.HandleFunc("GET /api/initiatives/{id}/forms", s.handleListForms)
	mux.HandleFunc("GET /api/initiatives/{id}/forms/{gate}", s.handleGetForm)
	mux.HandleFunc("PUT /api/initiatives/{id}/forms/{gate}", s.handleSaveForm)
	mux.HandleFunc("PUT /api/initiatives/{id}/forms/{gate}/approve", s.handleFormAction(workflow.ActionApprove))
	mux.HandleFunc("PUT /api/initiatives/{id}/forms/{gate}/reject", s.handleFormAction(workflow.ActionReject))
	mux.HandleFunc("PUT /api/initiatives/{id}/forms/{gate}/request-change", s.handleFormAction(workflow.ActionRequestChange))

	mux.HandleFunc("GET /api/gates/{gate}/requirements", s.handleGetRequirements)

	mux.HandleFunc("PUT /api/configs/{key...}", s.handleSetConfig)
	mux.HandleFunc("GET /api/configs/{key...}", s.handleGetConfig)
	mux.HandleFunc("GET /api/configs", s.handleListConfigs)
	mux.HandleFunc("DELETE /api/configs/{key...}", s.handleDeleteConfig)

	mux.HandleFunc("GET /api/user/role", s.handleGetMyRole)
	mux.HandleFunc("PUT /api/user/{userId}/role", s.handleSetUserRole)
	mux.HandleFunc("GET /api/users", s.handleListUsers)

	var h http.Handler = mux
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
		h = s.metrics.Middleware(mux)
	}
	return RecoveryMiddleware(LoggingMiddleware(AuthMiddleware(auth, h)))
}

// handleHealth handles GET /api/health.
func (s *GatesServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LoggingMiddleware logs method, path, status and duration for every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		}
		if rec.status >= http.StatusInternalServerError {
			slog.Error("http request", attrs...)
		} else {
			slog.Info("http request", attrs...)
		}
	})
}

// RecoveryMiddleware catches panics in downstream handlers, logs the stack
// trace, and returns a 500 instead of dropping the connection.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", v),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// decodeBody decodes a JSON request body into v. An empty body is accepted
// when optional is true and leaves v untouched.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return inputError("invalid JSON body")
	}
	return nil
}

// parseGate reads the {gate} path value.
func parseGate(r *http.Request) (model.Gate, error) {
	g, err := model.ParseGate(r.PathValue("gate"))
	if err != nil {
		return "", inputError(err.Error())
	}
	return g, nil
}

// writeStoreError maps an error from the store, the workflow or input
// handling to an HTTP status. notFound is the message used for 404s.
func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	var (
		ie inputError
		ve *model.ValidationError
	)
	switch {
	case errors.Is(err, errUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, workflow.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, errLastControlTower):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &ie), errors.As(err, &ve), errors.Is(err, workflow.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
