package handlers

import (
	"context"
	"io"
	"log/slog"

	"jobplane/internal/registry"
	"jobplane/internal/scheduler"
)

// fakeRunnable is a minimal registry.Runnable for exercising the HTTP
// surface without a real execution substrate.
type fakeRunnable struct {
	registry.DefaultRunnable
	name        string
	abortable   bool
}

func (f *fakeRunnable) Name() string            { return f.name }
func (f *fakeRunnable) MaxExecutionMs() int64   { return 0 }
func (f *fakeRunnable) MaxIdleMs() int64        { return 0 }
func (f *fakeRunnable) IsRemote() bool          { return false }
func (f *fakeRunnable) IsAbortable() bool       { return f.abortable }
func (f *fakeRunnable) PollingIntervalMs() int64 { return 0 }

func (f *fakeRunnable) Execute(ctx context.Context, ec *registry.ExecutionContext) registry.ExceptionResult {
	return registry.Recovered()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHandlers builds a Handlers with a scheduler wired to deps and a
// registry preloaded with names, each abortable per abortableNames.
func newTestHandlers(deps *fakeDeps, names []string, abortableNames map[string]bool) *Handlers {
	reg := registry.New()
	sched := scheduler.New(reg, deps, deps, "test-host", testLogger())
	for _, name := range names {
		sched.RegisterJob(context.Background(), &fakeRunnable{name: name, abortable: abortableNames[name]})
	}
	return New(sched, deps, testLogger())
}
