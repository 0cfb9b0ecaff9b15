package remote

import (
	"bytes"
	"context"
	"fmt"

	"jobplane/internal/registry"
	"jobplane/internal/store"
)

// ScriptProvider produces the tar.gz archive of scripts for a named job,
// e.g. reading it from disk or rendering it from a template.
type ScriptProvider interface {
	Archive(name string) (*bytes.Reader, error)
}

// Runnable drives a job whose actual work happens on a remote executor
// host: Execute only triggers the remote start, Prepare/AfterExecution run
// locally. Completion is observed later by Supervisor.Poll, not here,
// mirroring AbstractRemoteJobRunnable's template methods.
type Runnable struct {
	registry.DefaultRunnable

	name              string
	maxExecutionMs    int64
	maxIdleMs         int64
	pollingIntervalMs int64
	abortable         bool

	client   *Client
	scripts  ScriptProvider
}

// NewRunnable builds a remote Runnable named name, using client to reach
// the executor host and scripts to produce the archive uploaded on start.
func NewRunnable(name string, client *Client, scripts ScriptProvider, maxExecutionMs, maxIdleMs, pollingIntervalMs int64, abortable bool) *Runnable {
	return &Runnable{
		name:              name,
		maxExecutionMs:    maxExecutionMs,
		maxIdleMs:         maxIdleMs,
		pollingIntervalMs: pollingIntervalMs,
		abortable:         abortable,
		client:            client,
		scripts:           scripts,
	}
}

func (r *Runnable) Name() string              { return r.name }
func (r *Runnable) MaxExecutionMs() int64     { return r.maxExecutionMs }
func (r *Runnable) MaxIdleMs() int64          { return r.maxIdleMs }
func (r *Runnable) IsRemote() bool            { return true }
func (r *Runnable) IsAbortable() bool         { return r.abortable }
func (r *Runnable) PollingIntervalMs() int64  { return r.pollingIntervalMs }

// Execute triggers the remote start and records the job's URI as
// AdditionalData so Supervisor.Poll knows where to check on it. If the
// executor reports the job is already running (e.g. this process crashed
// after starting it but before persisting the URI), the existing job's
// URI is recorded instead and execution resumes tracking it.
func (r *Runnable) Execute(ctx context.Context, ec *registry.ExecutionContext) registry.ExceptionResult {
	archive, err := r.scripts.Archive(r.name)
	if err != nil {
		return registry.Terminal(fmt.Errorf("load script archive for %s: %w", r.name, err))
	}

	params := make(map[string]string)
	if ec.Record.Parameters != nil {
		for _, pair := range ec.Record.Parameters.Pairs() {
			params[pair.Key] = pair.Value
		}
	}

	jobURI, err := r.client.StartJob(ctx, r.name, archive, params)
	if alreadyRunning, ok := err.(*AlreadyRunningError); ok {
		ec.Logf("remote job %s already running, resuming at %s", r.name, alreadyRunning.JobURI)
		ec.InsertOrUpdateAdditionalData(store.DataKeyResumedAlreadyRunning, alreadyRunning.JobURI)
		ec.InsertOrUpdateAdditionalData(store.DataKeyRemoteJobURI, alreadyRunning.JobURI)
		return registry.Recovered()
	}
	if err != nil {
		return registry.Terminal(fmt.Errorf("start remote job %s: %w", r.name, err))
	}

	ec.Logf("triggered remote job %s at %s", r.name, jobURI)
	ec.InsertOrUpdateAdditionalData(store.DataKeyRemoteJobURI, jobURI)
	return registry.Recovered()
}
