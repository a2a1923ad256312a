package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/rrsim/internal/config"
	"github.com/me/rrsim/internal/scheduler"
	"github.com/me/rrsim/internal/session"
)

// Server is the RRSim REST API server.
type Server struct {
	router      chi.Router
	logger      *slog.Logger
	config      config.ServerConfig
	startTime   time.Time
	manager     *session.Manager
	scheduler   scheduler.Scheduler
	sseInterval time.Duration
}

// Option configures optional Server settings.
type Option func(*Server)

// WithSSEInterval sets how often SSE streams poll for simulation progress.
func WithSSEInterval(d time.Duration) Option {
	return func(s *Server) {
		s.sseInterval = d
	}
}

// New creates a new Server with all routes registered.
// sched may be nil if no auto-play is desired (e.g. in tests).
func New(cfg config.ServerConfig, mgr *session.Manager, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logger.With("component", "server"),
		config:      cfg,
		startTime:   time.Now(),
		manager:     mgr,
		scheduler:   sched,
		sseInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartScheduler begins the auto-play loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/simulations", func(r chi.Router) {
			r.Get("/", s.handleListSimulations)
			r.Post("/", s.handleCreateSimulation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSimulation)
				r.Delete("/", s.handleDeleteSimulation)
				r.Post("/tick", s.handleTickSimulation)
				r.Post("/run", s.handleRunSimulation)
				r.Put("/play", s.handlePlaySimulation)
				r.Put("/pause", s.handlePauseSimulation)
				r.Get("/gantt", s.handleGetGantt)
				r.Get("/iterations", s.handleGetIterations)
			})
		})

		r.Route("/sse", func(r chi.Router) {
			r.Get("/simulations/{id}", s.handleSSESimulation)
		})
	})
}
