// Package api exposes the scenario/run lifecycle over HTTP and SSE:
// starting and resuming runs, polling run status, streaming the
// run's event log, recording a decision override, and completing or
// exporting a scenario.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/gtmcore/orchestrator/internal/events"
	"github.com/gtmcore/orchestrator/internal/state"
)

// Runtime is the scenario/run lifecycle surface the API drives. The
// concrete implementation is internal/scheduler's pipeline runner;
// the API depends only on this interface so the two packages can be
// built and tested independently.
type Runtime interface {
	// StartRun begins a new run for scenarioID. changedDecision is
	// empty for an initial sweep, or a decision key ("icp",
	// "positioning", "pricing", "channels", "sales_motion") to scope a
	// reconciliation pass to the agents that decision impacts.
	StartRun(ctx context.Context, scenarioID, changedDecision string) (runID string, err error)

	// ResumeRun continues runID from its latest checkpoint.
	ResumeRun(ctx context.Context, runID string) error

	// RunStatus reports a run's lifecycle status ("running",
	// "blocked", "completed", "failed") and its latest checkpoint
	// index.
	RunStatus(ctx context.Context, runID string) (status string, checkpointIndex int64, err error)

	// SelectDecision records a user's choice (or custom override) for
	// one decision slot and, when the selection changes the
	// previously recorded value, triggers a reconciliation run scoped
	// to the decisions it impacts.
	SelectDecision(ctx context.Context, scenarioID, key string, selectedOptionID string, isCustom bool, justification string) error

	// Complete marks scenarioID's execution phase as user-confirmed
	// complete, subject to the mark-complete validator gate.
	Complete(ctx context.Context, scenarioID string) error

	// ExportReadiness reports whether scenarioID's latest state
	// passes the export-final validator gate, and the blocking
	// contradictions if it doesn't.
	ExportReadiness(ctx context.Context, scenarioID string) (ready bool, blocking []state.Contradiction, err error)

	// CancelRun stops runID at its next checkpoint fence, discarding
	// any in-flight provider call and reporting the run failed with
	// cause "cancelled".
	CancelRun(ctx context.Context, runID string) error
}

// Server provides the HTTP REST + SSE API for the orchestration
// runtime.
type Server struct {
	router  chi.Router
	runtime Runtime
	events  *events.Bus
	logger  *slog.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new API server backed by runtime and bus.
func NewServer(runtime Runtime, bus *events.Bus, opts ...ServerOption) *Server {
	s := &Server{
		runtime: runtime,
		events:  bus,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/scenarios/{scenarioID}", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Post("/decisions/{key}/select", s.handleSelectDecision)
		r.Post("/complete", s.handleComplete)
		r.Get("/export", s.handleExport)
	})

	r.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/", s.handleGetRun)
		r.Post("/resume", s.handleResumeRun)
		r.Delete("/", s.handleCancelRun)
		r.Get("/stream", s.handleStream)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// respondErr sends the error envelope for err, using
// httpStatusForDomainError to pick the status and falling back to
// 500 for anything that isn't a DomainError.
func respondErr(w http.ResponseWriter, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, toErrorBody(err))
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	return srv.ListenAndServe()
}
