package remote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

// Supervisor periodically checks on RUNNING remote jobs and persists their
// status, mirroring JobService.pollRemoteJobs/updateJobStatus.
type Supervisor struct {
	registry *registry.Registry
	records  store.RecordStore
	client   *Client
	log      *slog.Logger
}

// NewSupervisor builds a Supervisor that polls jobs registered in reg.
func NewSupervisor(reg *registry.Registry, records store.RecordStore, client *Client, log *slog.Logger) *Supervisor {
	return &Supervisor{registry: reg, records: records, client: client, log: log}
}

// Poll checks every registered remote job's RUNNING record and, if its
// polling interval has elapsed since it was last modified, fetches and
// persists its current status.
func (s *Supervisor) Poll(ctx context.Context) {
	now := time.Now().UTC()
	for _, runnable := range s.registry.All() {
		if !runnable.IsRemote() {
			continue
		}
		running, err := s.records.FindByNameAndState(ctx, runnable.Name(), store.RunningStateRunning)
		if err != nil {
			s.log.Error("poll remote: find running failed", "name", runnable.Name(), "error", err)
			continue
		}
		for _, rec := range running {
			if !jobRequiresUpdate(rec.LastModifiedAt, now, runnable.PollingIntervalMs()) {
				continue
			}
			s.pollOne(ctx, rec)
		}
	}
}

// jobRequiresUpdate reports whether pollingIntervalMs has elapsed since
// lastModified, as of now.
func jobRequiresUpdate(lastModified, now time.Time, pollingIntervalMs int64) bool {
	return now.Add(-time.Duration(pollingIntervalMs) * time.Millisecond).After(lastModified)
}

func (s *Supervisor) pollOne(ctx context.Context, rec *store.JobRecord) {
	if rec.AdditionalData == nil {
		s.log.Warn("poll remote: running record has no remote job uri", "name", rec.Name, "id", rec.ID)
		return
	}
	jobURI, ok := rec.AdditionalData.Get(store.DataKeyRemoteJobURI)
	if !ok || jobURI == "" {
		s.log.Warn("poll remote: running record has no remote job uri", "name", rec.Name, "id", rec.ID)
		return
	}

	status, err := s.client.GetStatus(ctx, jobURI)
	if err != nil {
		s.log.Error("poll remote: get status failed", "name", rec.Name, "id", rec.ID, "uri", jobURI, "error", err)
		return
	}
	s.updateJobStatus(ctx, rec, status)
}

func (s *Supervisor) updateJobStatus(ctx context.Context, rec *store.JobRecord, status *JobStatus) {
	switch status.Status {
	case StatusRunning:
		if err := s.records.SetLogLines(ctx, rec.ID, reconcileLogLines(rec.LogLines, status.LogLines)); err != nil {
			s.log.Error("poll remote: set log lines failed", "name", rec.Name, "id", rec.ID, "error", err)
		}
		if err := s.records.SetStatusMessage(ctx, rec.ID, status.Message); err != nil {
			s.log.Error("poll remote: set status message failed", "name", rec.Name, "id", rec.ID, "error", err)
		}
	case StatusFinished:
		s.finishJob(ctx, rec, status)
	default:
		s.log.Warn("poll remote: unknown remote status", "name", rec.Name, "id", rec.ID, "status", status.Status)
	}
}

func (s *Supervisor) finishJob(ctx context.Context, rec *store.JobRecord, status *JobStatus) {
	if status.Result == nil {
		s.log.Error("poll remote: finished without a result", "name", rec.Name, "id", rec.ID)
		return
	}
	if status.Result.OK {
		if err := s.records.MarkRunningAsFinished(ctx, rec.ID, store.ResultSuccessful, "", time.Now().UTC()); err != nil {
			s.log.Error("poll remote: mark finished failed", "name", rec.Name, "id", rec.ID, "error", err)
		}
		return
	}
	if err := s.records.AddAdditionalData(ctx, rec.ID, store.DataKeyExitCode, fmt.Sprintf("%d", status.Result.ExitCode)); err != nil {
		s.log.Error("poll remote: add exit code failed", "name", rec.Name, "id", rec.ID, "error", err)
	}
	if err := s.records.MarkRunningAsFinished(ctx, rec.ID, store.ResultFailed, status.Result.Message, time.Now().UTC()); err != nil {
		s.log.Error("poll remote: mark finished failed", "name", rec.Name, "id", rec.ID, "error", err)
	}
}

// reconcileLogLines appends the suffix of incoming beyond len(persisted) to
// persisted, mirroring AbstractRemoteJobRunnable.getRemoteStatus: dedup is by
// count, not content, so a remote that rewrites its own history earlier than
// the persisted length is not detected and those lines are not replayed.
func reconcileLogLines(persisted []store.LogLine, incoming []string) []store.LogLine {
	if len(incoming) <= len(persisted) {
		return persisted
	}
	now := time.Now().UTC()
	out := append([]store.LogLine(nil), persisted...)
	for _, l := range incoming[len(persisted):] {
		out = append(out, store.LogLine{Timestamp: now, Text: l})
	}
	if len(out) > store.MaxLogLines {
		out = out[len(out)-store.MaxLogLines:]
	}
	return out
}
