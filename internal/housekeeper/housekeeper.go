// Package housekeeper runs the periodic sweeps that the scheduler itself
// doesn't do inline: timing out jobs that have run or sat idle too long,
// and pruning aged FINISHED records.
package housekeeper

import (
	"context"
	"log/slog"
	"time"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

// Housekeeper periodically scans RUNNING records for timeouts and old
// FINISHED records for retention pruning.
type Housekeeper struct {
	registry  *registry.Registry
	records   store.RecordStore
	log       *slog.Logger
	retention time.Duration
}

// New builds a Housekeeper. retention is how long a FINISHED record is
// kept before Sweep removes it; zero disables pruning.
func New(reg *registry.Registry, records store.RecordStore, retention time.Duration, log *slog.Logger) *Housekeeper {
	return &Housekeeper{registry: reg, records: records, retention: retention, log: log}
}

// Run loops Sweep on interval until ctx is cancelled.
func (h *Housekeeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Sweep times out hanging RUNNING records and prunes aged FINISHED ones.
func (h *Housekeeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	h.timeoutRunning(ctx, now)
	h.pruneFinished(ctx, now)
}

func (h *Housekeeper) timeoutRunning(ctx context.Context, now time.Time) {
	running, err := h.records.FindRunning(ctx)
	if err != nil {
		h.log.Error("housekeeper: find running failed", "error", err)
		return
	}
	for _, rec := range running {
		reason := h.timeoutReason(rec, now)
		if reason == "" {
			continue
		}
		h.log.Info("housekeeper: timing out job", "name", rec.Name, "id", rec.ID, "reason", reason)
		// Request a cooperative abort too: if the job is local, its
		// worker's watchAbort loop will stop the runtime process on its
		// next poll instead of running on past the record we're about to
		// mark finished.
		if err := h.records.SetAbortRequested(ctx, rec.ID); err != nil {
			h.log.Error("housekeeper: set abort requested failed", "name", rec.Name, "id", rec.ID, "error", err)
		}
		if err := h.records.MarkRunningAsFinished(ctx, rec.ID, store.ResultTimedOut, reason, now); err != nil {
			h.log.Error("housekeeper: mark timed out failed", "name", rec.Name, "id", rec.ID, "error", err)
		}
	}
}

// timeoutReason returns a non-empty message if rec has exceeded its
// max-execution or max-idle budget, or "" if it's still healthy.
func (h *Housekeeper) timeoutReason(rec *store.JobRecord, now time.Time) string {
	if rec.MaxExecutionMs > 0 && rec.StartedAt != nil {
		if now.Sub(*rec.StartedAt) > time.Duration(rec.MaxExecutionMs)*time.Millisecond {
			return "exceeded max execution time"
		}
	}
	if rec.MaxIdleMs > 0 {
		if now.Sub(rec.LastModifiedAt) > time.Duration(rec.MaxIdleMs)*time.Millisecond {
			return "exceeded max idle time"
		}
	}
	return ""
}

func (h *Housekeeper) pruneFinished(ctx context.Context, now time.Time) {
	if h.retention <= 0 {
		return
	}
	cutoff := now.Add(-h.retention)
	for _, name := range h.registry.Names() {
		records, err := h.records.FindByName(ctx, name, 0)
		if err != nil {
			h.log.Error("housekeeper: find by name failed", "name", name, "error", err)
			continue
		}
		for _, rec := range records {
			if rec.RunningState != store.RunningStateFinished || rec.FinishedAt == nil {
				continue
			}
			if rec.FinishedAt.After(cutoff) {
				continue
			}
			if err := h.records.Remove(ctx, rec.ID); err != nil {
				h.log.Error("housekeeper: remove aged record failed", "name", name, "id", rec.ID, "error", err)
			}
		}
	}
}
