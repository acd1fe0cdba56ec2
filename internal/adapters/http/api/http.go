// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Submit queues a run; with wait it blocks until the run finishes.
	Submit(ctx context.Context, req model.RunRequest, wait bool) (model.Result, error)
	Runs(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	syncHandler   *SyncHandler
	runsHandler   *RunsHandler
	apiKey        string
	logger        logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey guards the sync and runs endpoints with a function key.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{logger: logger.Get().Named("api")}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.syncHandler = NewSyncHandler(deps, s.logger)
	s.runsHandler = NewRunsHandler(deps)
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", MetricsHandler().ServeHTTP)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
		r.Group(func(r chi.Router) {
			r.Use(APIKey(s.apiKey))
			r.Get("/kpi_sync", MetricsMiddleware(s.syncHandler.HandleSync, "kpi_sync"))
			r.Post("/kpi_sync", MetricsMiddleware(s.syncHandler.HandleSync, "kpi_sync"))
			r.Get("/runs", MetricsMiddleware(s.runsHandler.HandleRuns, "runs"))
		})
	})
}

// NewRouter returns a chi router with every route registered.
func (s *Server) NewRouter(ctx context.Context) *chi.Mux {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
