// Package scheduler implements the admission, queueing and dispatch of job
// executions: at most one RUNNING and one QUEUED record per job name,
// running constraints between job groups, and priority-based displacement
// of queued or running work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

// Scheduler owns the admit decision (I1/I2) and dispatches accepted work
// to goroutines that drive each Runnable through its lifecycle.
type Scheduler struct {
	registry    *registry.Registry
	records     store.RecordStore
	definitions store.DefinitionStore
	constraints *constraintSet

	host string
	log  *slog.Logger

	executionEnabled atomic.Bool

	wg sync.WaitGroup
}

// New constructs a Scheduler. host identifies this process for
// JobRecord.Host, consulted by ShutdownJobs to only reap locally-started
// work.
func New(reg *registry.Registry, records store.RecordStore, definitions store.DefinitionStore, host string, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		registry:    reg,
		records:     records,
		definitions: definitions,
		constraints: newConstraintSet(),
		host:        host,
		log:         log,
	}
	s.executionEnabled.Store(true)
	return s
}

// IsExecutionEnabled reports the scheduler-wide execution flag.
func (s *Scheduler) IsExecutionEnabled() bool {
	return s.executionEnabled.Load()
}

// SetExecutionEnabled toggles scheduler-wide execution. Default is true.
func (s *Scheduler) SetExecutionEnabled(enabled bool) {
	s.executionEnabled.Store(enabled)
}

// SetJobExecutionEnabled persists the per-job disabled flag on name's
// definition. It fails JobNotRegistered if name has no Runnable.
func (s *Scheduler) SetJobExecutionEnabled(ctx context.Context, name string, enabled bool) error {
	if !s.registry.Has(name) {
		return &JobNotRegisteredError{Name: name}
	}
	return s.definitions.SetDisabled(ctx, name, !enabled)
}

// HasLocalRunningJobs reports whether this host currently owns any RUNNING
// record, for the /jobs/status health signal.
func (s *Scheduler) HasLocalRunningJobs(ctx context.Context) (bool, error) {
	running, err := s.records.FindRunning(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range running {
		if rec.Host == s.host {
			return true, nil
		}
	}
	return false, nil
}

// RegisterJob registers runnable's Runnable and upserts its JobDefinition,
// reporting false if a job with that name is already registered.
func (s *Scheduler) RegisterJob(ctx context.Context, runnable registry.Runnable) (bool, error) {
	if !s.registry.Register(runnable) {
		return false, nil
	}
	def := &store.JobDefinition{
		Name:              runnable.Name(),
		IsRemote:          runnable.IsRemote(),
		IsAbortable:       runnable.IsAbortable(),
		MaxExecutionMs:    runnable.MaxExecutionMs(),
		MaxIdleMs:         runnable.MaxIdleMs(),
		PollingIntervalMs: runnable.PollingIntervalMs(),
	}
	if err := s.definitions.Upsert(ctx, def); err != nil {
		return true, fmt.Errorf("upsert definition for %s: %w", def.Name, err)
	}
	return true, nil
}

// AddRunningConstraint registers names as a mutual-exclusion group: while
// any member (including a job blocking against itself) is RUNNING, no
// other member may start. Every name must already be registered.
func (s *Scheduler) AddRunningConstraint(names []string) (bool, error) {
	for _, name := range names {
		if !s.registry.Has(name) {
			return false, &JobNotRegisteredError{Name: name}
		}
	}
	return s.constraints.Add(names), nil
}

// ListJobNames returns the names of every registered job.
func (s *Scheduler) ListJobNames() []string {
	return s.registry.Names()
}

// ListRunningConstraints returns every registered constraint group.
func (s *Scheduler) ListRunningConstraints() [][]string {
	return s.constraints.List()
}

// RemoveJobFromQueue withdraws a queued execution request for name,
// reporting whether a queued record was found.
func (s *Scheduler) RemoveJobFromQueue(ctx context.Context, name string) (bool, error) {
	queued, err := s.records.FindByNameAndState(ctx, name, store.RunningStateQueued)
	if err != nil {
		return false, err
	}
	if len(queued) == 0 {
		return false, nil
	}
	if err := s.records.MarkQueuedAsNotExecuted(ctx, queued[0].ID, "removed from queue", time.Now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

// ExecuteJob is the admit decision (I1/I2): it either runs name
// immediately, queues it for a later ExecuteQueuedJobs sweep, or rejects
// the request, exactly mirroring executeJob in the original scheduler.
// params becomes the new record's Parameters; a nil params is treated as
// empty.
func (s *Scheduler) ExecuteJob(ctx context.Context, name string, priority store.Priority, params *store.OrderedMap) (*store.JobRecord, error) {
	runnable, ok := s.registry.Get(name)
	if !ok {
		return nil, &JobNotRegisteredError{Name: name}
	}
	if !s.executionEnabled.Load() {
		return nil, &JobExecutionDisabledError{}
	}
	def, err := s.definitions.FindDefinitionByName(ctx, name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if def != nil && def.Disabled {
		return nil, &JobExecutionDisabledError{Name: name}
	}

	queued, err := s.records.FindByNameAndState(ctx, name, store.RunningStateQueued)
	if err != nil {
		return nil, err
	}
	if len(queued) > 0 {
		existing := queued[0]
		if existing.ExecutionPriority.IsLowerThan(priority) {
			if err := s.records.Remove(ctx, existing.ID); err != nil {
				return nil, err
			}
			return s.queueJob(ctx, runnable, priority, params, existing.ID)
		}
		return nil, &JobAlreadyQueuedError{Name: name}
	}

	running, err := s.records.FindByNameAndState(ctx, name, store.RunningStateRunning)
	if err != nil {
		return nil, err
	}
	if len(running) == 0 {
		violates, err := s.constraints.violates(ctx, s.records, name)
		if err != nil {
			return nil, err
		}
		if violates {
			return s.queueJob(ctx, runnable, priority, params, "")
		}
		rec, err := s.runJob(ctx, runnable, priority, params)
		if err != nil {
			return nil, err
		}
		s.dispatch(runnable, rec, priority)
		return rec, nil
	}
	if running[0].ExecutionPriority.IsEqualOrHigherThan(priority) {
		return nil, &JobExecutionNotNecessaryError{Name: name}
	}
	return s.queueJob(ctx, runnable, priority, params, "")
}

// queueJob inserts a new QUEUED record. When displacedID is non-empty, the
// new record carries store.DataKeyResumedAlreadyRunning pointing at the
// displaced record's id, per §4.3 step 3's displacement audit trail.
func (s *Scheduler) queueJob(ctx context.Context, runnable registry.Runnable, priority store.Priority, params *store.OrderedMap, displacedID string) (*store.JobRecord, error) {
	rec := newRecord(runnable, store.RunningStateQueued, priority, params)
	if displacedID != "" {
		rec.AdditionalData.Set(store.DataKeyResumedAlreadyRunning, displacedID)
	}
	created, err := s.records.CreateUnique(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, &JobAlreadyQueuedError{Name: runnable.Name()}
	}
	return created, err
}

func (s *Scheduler) runJob(ctx context.Context, runnable registry.Runnable, priority store.Priority, params *store.OrderedMap) (*store.JobRecord, error) {
	rec := newRecord(runnable, store.RunningStateRunning, priority, params)
	rec.Host = s.host
	now := time.Now().UTC()
	rec.StartedAt = &now
	created, err := s.records.CreateUnique(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil, &JobAlreadyRunningError{Name: runnable.Name()}
	}
	return created, err
}

func newRecord(runnable registry.Runnable, state store.RunningState, priority store.Priority, params *store.OrderedMap) *store.JobRecord {
	now := time.Now().UTC()
	if params == nil {
		params = store.NewOrderedMap()
	}
	return &store.JobRecord{
		Name:              runnable.Name(),
		RunningState:      state,
		ExecutionPriority: priority,
		Parameters:        params,
		AdditionalData:    store.NewOrderedMap(),
		CreatedAt:         now,
		LastModifiedAt:    now,
		MaxExecutionMs:    runnable.MaxExecutionMs(),
		MaxIdleMs:         runnable.MaxIdleMs(),
	}
}

// ExecuteQueuedJobs drains the queue for every registered job name, in the
// order each record was queued, activating whichever ones aren't blocked
// by an already-running instance or a running constraint.
func (s *Scheduler) ExecuteQueuedJobs(ctx context.Context) {
	if !s.executionEnabled.Load() {
		return
	}
	for _, name := range s.registry.Names() {
		queued, err := s.records.FindQueuedSortedAscByCreation(ctx, name)
		if err != nil {
			s.log.Error("list queued jobs failed", "name", name, "error", err)
			continue
		}
		for _, rec := range queued {
			s.executeQueuedJob(ctx, rec)
		}
	}
}

func (s *Scheduler) executeQueuedJob(ctx context.Context, rec *store.JobRecord) {
	running, err := s.records.FindByNameAndState(ctx, rec.Name, store.RunningStateRunning)
	if err != nil {
		s.log.Error("check running failed", "name", rec.Name, "error", err)
		return
	}
	if len(running) > 0 {
		s.log.Info("queued job already running", "name", rec.Name, "id", rec.ID)
		return
	}
	violates, err := s.constraints.violates(ctx, s.records, rec.Name)
	if err != nil {
		s.log.Error("check running constraints failed", "name", rec.Name, "error", err)
		return
	}
	if violates {
		s.log.Info("queued job violates running constraints", "name", rec.Name, "id", rec.ID)
		return
	}

	runnable, ok := s.registry.Get(rec.Name)
	if !ok {
		s.log.Error("queued job has no registered runnable", "name", rec.Name, "id", rec.ID)
		return
	}

	activated, err := s.records.ActivateQueuedJob(ctx, rec.ID, s.host, goroutineThreadName(), time.Now().UTC())
	if errors.Is(err, store.ErrAlreadyExists) {
		s.log.Warn("queued job lost race for running slot", "name", rec.Name, "id", rec.ID)
		return
	}
	if err != nil {
		s.log.Error("activate queued job failed", "name", rec.Name, "id", rec.ID, "error", err)
		return
	}
	s.log.Info("activated queued job", "name", rec.Name, "id", rec.ID)
	s.dispatch(runnable, activated, activated.ExecutionPriority)
}

func goroutineThreadName() string {
	return fmt.Sprintf("worker-%d", time.Now().UnixNano())
}

// AbortJob flags a running job's JobRecord for abort; the running worker
// (or, for remote jobs, the poll loop) observes AbortRequested and stops
// the underlying execution.
func (s *Scheduler) AbortJob(ctx context.Context, id string) error {
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		return err
	}
	def, err := s.definitions.FindDefinitionByName(ctx, rec.Name)
	if err != nil {
		return err
	}
	if !def.IsAbortable {
		return &JobNotAbortableError{Name: rec.Name}
	}
	if err := s.records.SetAbortRequested(ctx, id); err != nil {
		return err
	}
	return s.records.AddAdditionalData(ctx, id, store.DataKeyAborted, "true")
}

// ShutdownJobs marks every local (non-remote) RUNNING job started on this
// host as FINISHED/FAILED, since the process owning its goroutine is
// going away. Remote jobs are left for the next poller to pick up.
func (s *Scheduler) ShutdownJobs(ctx context.Context) {
	if !s.executionEnabled.Load() {
		return
	}
	for _, runnable := range s.registry.All() {
		if runnable.IsRemote() {
			continue
		}
		running, err := s.records.FindByNameAndState(ctx, runnable.Name(), store.RunningStateRunning)
		if err != nil {
			s.log.Error("shutdown: list running failed", "name", runnable.Name(), "error", err)
			continue
		}
		for _, rec := range running {
			if rec.Host != s.host {
				continue
			}
			s.log.Info("shutting down running job", "name", runnable.Name(), "id", rec.ID)
			if err := s.records.MarkRunningAsFinished(ctx, rec.ID, store.ResultFailed, "shutdownJobs called from executing host", time.Now().UTC()); err != nil {
				s.log.Error("shutdown: mark finished failed", "name", runnable.Name(), "id", rec.ID, "error", err)
			}
		}
	}
	s.wg.Wait()
}
