// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"jobplane/internal/controller/handlers"
	"jobplane/internal/controller/middleware"
	"jobplane/internal/scheduler"
)

// Config configures the controller's HTTP surface.
type Config struct {
	Addr                 string
	InternalSystemSecret string
	Log                  *slog.Logger
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server, wiring the job resource tree from
// §6.1 on top of sched and deps.
func New(cfg Config, sched *scheduler.Scheduler, deps handlers.Dependencies) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	h := handlers.New(sched, deps, log)
	authMW := middleware.AuthMiddleware(deps)
	rateLimitMW := middleware.NewRateLimiter().Middleware()
	internalMW := middleware.RequireInternalAuth(cfg.InternalSystemSecret)

	authenticated := func(next http.HandlerFunc) http.Handler {
		return authMW(rateLimitMW(next))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	mux.Handle("POST /tenants", internalMW(http.HandlerFunc(h.CreateTenant)))

	mux.Handle("GET /jobs", authenticated(h.ListJobs))
	mux.Handle("POST /jobs/enable", authenticated(h.EnableJobs))
	mux.Handle("POST /jobs/disable", authenticated(h.DisableJobs))
	mux.Handle("GET /jobs/status", authenticated(h.JobsStatus))
	mux.Handle("GET /jobs/history", authenticated(h.JobHistory))
	mux.Handle("POST /jobs/{name}", authenticated(h.ExecuteJob))
	mux.Handle("GET /jobs/{name}", authenticated(h.GetJobRecords))
	mux.Handle("POST /jobs/{name}/enable", authenticated(h.EnableJob))
	mux.Handle("POST /jobs/{name}/disable", authenticated(h.DisableJob))
	mux.Handle("GET /jobs/{name}/{id}", authenticated(h.GetJobRecord))
	mux.Handle("POST /jobs/{name}/{id}/abort", authenticated(h.AbortJobRecord))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
