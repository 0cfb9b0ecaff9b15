package scheduler

import (
	"context"
	"time"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

// dispatch runs runnable's lifecycle for rec on its own goroutine. The
// Scheduler tracks it in wg so ShutdownJobs can wait for in-flight local
// work to observe the FINISHED state it writes before the process exits.
func (s *Scheduler) dispatch(runnable registry.Runnable, rec *store.JobRecord, priority store.Priority) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLifecycle(context.Background(), runnable, rec, priority)
	}()
}

// runLifecycle drives prepare -> execute -> afterExecution, matching
// AbstractRemoteJobRunnable's template methods: any phase's ExceptionResult
// can mark the failure recovered (continue) or terminal (stop and persist
// FAILED/ABORTED). AfterExecution always runs, on every path through
// prepare and execute, remote or local, per its contract. Execute only
// runs if Prepare recovered; a failed Prepare still runs AfterExecution
// before the failure is persisted. Remote runnables still return without
// finishing the record after that: completion is observed and persisted
// by the poll loop, not here.
func (s *Scheduler) runLifecycle(ctx context.Context, runnable registry.Runnable, rec *store.JobRecord, priority store.Priority) {
	ec := registry.NewExecutionContext(rec, priority,
		func(line string) {
			_ = s.records.AppendLogLine(ctx, rec.ID, store.LogLine{Timestamp: time.Now().UTC(), Text: line})
		},
		func(key, value string) {
			_ = s.records.AddAdditionalData(ctx, rec.ID, key, value)
		},
	)

	prepareRes := runnable.Prepare(ctx, ec)

	execRes := registry.Recovered()
	if prepareRes.Recovered {
		execRes = runnable.Execute(ctx, ec)
	}

	afterRes := runnable.AfterExecution(ctx, ec)

	if runnable.IsRemote() {
		return
	}

	failure := firstFailure(prepareRes, execRes, afterRes)
	if failure != nil {
		result := store.ResultFailed
		if failure.Aborted {
			result = store.ResultAborted
		}
		s.finish(ctx, rec, result, errText(failure.Err))
		return
	}

	result := store.ResultSuccessful
	if ec.ResultCode != nil {
		result = *ec.ResultCode
	}
	s.finish(ctx, rec, result, "")
}

// firstFailure returns the earliest non-recovered result among prepare,
// execute and afterExecution, or nil if all three recovered.
func firstFailure(results ...registry.ExceptionResult) *registry.ExceptionResult {
	for i := range results {
		if !results[i].Recovered {
			return &results[i]
		}
	}
	return nil
}

func (s *Scheduler) finish(ctx context.Context, rec *store.JobRecord, result store.ResultCode, message string) {
	if err := s.records.MarkRunningAsFinished(ctx, rec.ID, result, message, time.Now().UTC()); err != nil {
		s.log.Error("mark finished failed", "name", rec.Name, "id", rec.ID, "error", err)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
