// Package local drives a job whose work runs in-process on this host via a
// runtime.Runtime backend (a bare OS process or a Docker container), as
// opposed to jobs dispatched to a remote executor host.
package local

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"jobplane/internal/registry"
	"jobplane/internal/runtime"
	"jobplane/internal/store"
)

// Runnable drives a local execution synchronously inside Execute: it
// starts rt, streams logs into the record as they arrive, waits for
// completion and translates the exit result into an ExceptionResult.
type Runnable struct {
	registry.DefaultRunnable

	name              string
	maxExecutionMs    int64
	maxIdleMs         int64
	pollingIntervalMs int64
	abortable         bool

	rt      runtime.Runtime
	opts    runtime.StartOptions
	records store.RecordStore

	abortPollInterval time.Duration
}

// NewRunnable builds a local Runnable named name that starts opts under rt.
// records is consulted for AbortRequested while the job is running, since
// Execute only sees the JobRecord snapshot taken at dispatch time.
func NewRunnable(name string, rt runtime.Runtime, opts runtime.StartOptions, records store.RecordStore, maxExecutionMs, maxIdleMs int64, abortable bool) *Runnable {
	return &Runnable{
		name:              name,
		maxExecutionMs:    maxExecutionMs,
		maxIdleMs:         maxIdleMs,
		abortable:         abortable,
		rt:                rt,
		opts:              opts,
		records:           records,
		abortPollInterval: 2 * time.Second,
	}
}

func (r *Runnable) Name() string             { return r.name }
func (r *Runnable) MaxExecutionMs() int64    { return r.maxExecutionMs }
func (r *Runnable) MaxIdleMs() int64         { return r.maxIdleMs }
func (r *Runnable) IsRemote() bool           { return false }
func (r *Runnable) IsAbortable() bool        { return r.abortable }
func (r *Runnable) PollingIntervalMs() int64 { return r.pollingIntervalMs }

// Execute starts the backend process for rec's parameters, streams its
// output into the record's log and blocks until it exits. A non-zero exit
// code is a terminal failure, recorded as store.DataKeyExitCode.
func (r *Runnable) Execute(ctx context.Context, ec *registry.ExecutionContext) registry.ExceptionResult {
	opts := r.opts
	opts.Env = mergeParams(opts.Env, ec.Record.Parameters)
	if opts.Env == nil {
		opts.Env = map[string]string{}
	}
	opts.Env[runtime.JobIDEnvKey] = ec.Record.ID

	handle, err := r.rt.Start(ctx, opts)
	if err != nil {
		return registry.Terminal(fmt.Errorf("start local job %s: %w", r.name, err))
	}

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var aborted atomic.Bool
	if r.abortable && r.records != nil {
		go r.watchAbort(execCtx, ec.Record.ID, handle, &aborted)
	}

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		r.pumpLogs(ctx, handle, ec)
	}()

	result, waitErr := handle.Wait(ctx)
	<-stop

	if aborted.Load() {
		return registry.Aborted(fmt.Errorf("local job %s aborted", r.name))
	}
	if waitErr != nil {
		return registry.Terminal(fmt.Errorf("run local job %s: %w", r.name, waitErr))
	}
	ec.InsertOrUpdateAdditionalData(store.DataKeyExitCode, strconv.Itoa(result.ExitCode))
	if result.ExitCode != 0 {
		return registry.Terminal(fmt.Errorf("local job %s exited with code %d", r.name, result.ExitCode))
	}
	return registry.Recovered()
}

// pumpLogs copies the backend's combined output into the record's log,
// line by line, until the stream closes.
func (r *Runnable) pumpLogs(ctx context.Context, handle runtime.Handle, ec *registry.ExecutionContext) {
	stream, err := handle.StreamLogs(ctx)
	if err != nil {
		ec.Logf("log stream unavailable: %v", err)
		return
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ec.Log(scanner.Text())
	}
}

// watchAbort polls the record's AbortRequested flag and stops handle as
// soon as it's set, mirroring Supervisor.Poll's interval-based checks for
// remote jobs. It marks aborted before stopping the handle so Execute can
// tell a cooperative abort apart from a genuine crash once Wait returns.
func (r *Runnable) watchAbort(ctx context.Context, recordID string, handle runtime.Handle, aborted *atomic.Bool) {
	ticker := time.NewTicker(r.abortPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec, err := r.records.FindByID(ctx, recordID)
			if err != nil {
				continue
			}
			if rec.AbortRequested {
				aborted.Store(true)
				_ = handle.Stop(ctx)
				return
			}
		}
	}
}

// mergeParams overlays the record's parameters onto base, the job's static
// environment template, so per-execution parameters win on key collision.
func mergeParams(base map[string]string, params *store.OrderedMap) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	if params != nil {
		for _, pair := range params.Pairs() {
			out[pair.Key] = pair.Value
		}
	}
	return out
}
