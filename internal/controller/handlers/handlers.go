// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strconv"

	"jobplane/internal/logger"
	"jobplane/internal/scheduler"
	"jobplane/internal/store"
	"jobplane/pkg/api"
)

// Dependencies combines the interfaces the controller API needs to serve
// the job resource tree: the scheduler for admit/abort/enable decisions,
// the stores for read paths the scheduler doesn't itself expose, and the
// tenant store for authentication.
type Dependencies interface {
	store.RecordStore
	store.DefinitionStore
	store.TenantStore
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	scheduler *scheduler.Scheduler
	deps      Dependencies
	log       *slog.Logger
}

// New creates a new Handlers instance wired to sched for admission/abort
// decisions and deps for the store reads the scheduler doesn't surface.
func New(sched *scheduler.Scheduler, deps Dependencies, log *slog.Logger) *Handlers {
	return &Handlers{scheduler: sched, deps: deps, log: log}
}

// respondJson writes a standard JSON response.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/vnd.otto.jobs+json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondAtom writes an Atom feed response.
func (h *Handlers) respondAtom(w http.ResponseWriter, status int, feed interface{}) {
	w.Header().Set("Content-Type", "application/atom+xml")
	w.WriteHeader(status)
	enc := xml.NewEncoder(w)
	enc.Encode(feed)
}

// httpError writes a standard error envelope and, for server-side
// failures, logs the underlying message with the request's correlation
// id attached.
func (h *Handlers) httpError(w http.ResponseWriter, r *http.Request, message string, code int) {
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), h.log).Error("request failed", "path", r.URL.Path, "status", code, "message", message)
	}
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// schedulerErrorStatus maps the scheduler's error taxonomy to the HTTP
// status codes from the controller's resource table.
func schedulerErrorStatus(err error) int {
	switch err.(type) {
	case *scheduler.JobNotRegisteredError, *scheduler.JobNotFoundError:
		return http.StatusNotFound
	case *scheduler.JobAlreadyQueuedError, *scheduler.JobAlreadyRunningError:
		return http.StatusConflict
	case *scheduler.JobExecutionNotNecessaryError, *scheduler.JobExecutionDisabledError:
		return http.StatusPreconditionFailed
	case *scheduler.JobNotAbortableError:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
