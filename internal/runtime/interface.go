// Package runtime provides the execution backends a remote executor host
// can run jobs under: a bare OS process, a Docker container, or a
// Kubernetes Job. All three satisfy the same Runtime/Handle contract so
// the host package can pick a backend at startup via configuration.
package runtime

import (
	"context"
	"io"
)

// Runtime starts job executions under a particular backend.
type Runtime interface {
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions describes a single job execution. Dir, when set, is the
// directory the job's scripts were extracted into (populated by the
// executor host from the uploaded tar.gz) and becomes the process's
// working directory / bind-mounted volume.
type StartOptions struct {
	Image   string
	Command []string
	Env     map[string]string
	Dir     string
	Timeout int // seconds; none of the backends in this package enforces it
}

// ExitResult is the terminal outcome of a job execution.
type ExitResult struct {
	ExitCode int
	Error    error
}

// Handle represents a running job execution.
type Handle interface {
	// Wait blocks until the job completes and returns its exit result.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop forcefully terminates the job.
	Stop(ctx context.Context) error

	// StreamLogs returns a reader over the job's combined stdout/stderr.
	StreamLogs(ctx context.Context) (io.ReadCloser, error)
}
