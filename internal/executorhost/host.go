// Package executorhost implements the remote executor side of the §6.2
// wire protocol: it accepts a tar.gz of scripts plus JSON parameters over
// HTTP, runs them through a runtime.Runtime backend, and answers status
// and stop requests while the job is in flight.
package executorhost

import (
	"context"
	"net/http"
	"sync"
	"time"

	"jobplane/internal/remote"
	"jobplane/internal/runtime"
)

// jobState tracks one job this host has started, keyed by name (the host
// runs at most one instance of a given job name at a time, mirroring the
// scheduler's own RUNNING uniqueness).
type jobState struct {
	id         string
	name       string
	handle     runtime.Handle
	status     remote.Status
	logLines   []string
	result     *remote.Result
	finishTime time.Time
}

// Host serves the executor-side HTTP API and owns the set of jobs
// currently running under rt.
type Host struct {
	rt      runtime.Runtime
	workDir string

	mu   sync.Mutex
	jobs map[string]*jobState // keyed by name
	byID map[string]*jobState // keyed by id, for the job-uri GET/stop routes
}

// New builds a Host that runs jobs through rt, extracting uploaded
// archives under workDir.
func New(rt runtime.Runtime, workDir string) *Host {
	return &Host{
		rt:      rt,
		workDir: workDir,
		jobs:    make(map[string]*jobState),
		byID:    make(map[string]*jobState),
	}
}

// Handler returns the HTTP handler implementing §6.2: start, status,
// stop, and liveness.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", h.handleLiveness)
	mux.HandleFunc("POST /{name}/start", h.handleStart)
	mux.HandleFunc("GET /jobs/{id}", h.handleStatus)
	mux.HandleFunc("POST /jobs/{id}/stop", h.handleStop)
	return mux
}

func (h *Host) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Server wraps Handler in an *http.Server with 30-second read and write
// timeouts.
func Server(addr string, h *Host) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Run starts srv and blocks until ctx is cancelled, then gracefully shuts
// it down.
func Run(ctx context.Context, srv *http.Server) error {
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
