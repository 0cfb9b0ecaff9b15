// Package bootstrap registers job definitions with a Scheduler from a
// declarative JSON file, so the controller process has something to
// admit/execute without requiring a Go-level caller to import the
// registry package directly.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"jobplane/internal/local"
	"jobplane/internal/registry"
	"jobplane/internal/remote"
	"jobplane/internal/runtime"
	"jobplane/internal/scheduler"
	"jobplane/internal/store"
)

// JobSpec describes one job definition to register at startup.
type JobSpec struct {
	Name              string            `json:"name"`
	Kind              string            `json:"kind"` // "local" or "remote"
	Image             string            `json:"image,omitempty"`
	Command           []string          `json:"command,omitempty"`
	Env               map[string]string `json:"env,omitempty"`
	MaxExecutionMs    int64             `json:"maxExecutionMs"`
	MaxIdleMs         int64             `json:"maxIdleMs"`
	PollingIntervalMs int64             `json:"pollingIntervalMs"`
	Abortable         bool              `json:"abortable"`
}

// Spec is the top-level shape of a jobs file: a set of job definitions
// plus the running-constraint groups between them.
type Spec struct {
	Jobs        []JobSpec  `json:"jobs"`
	Constraints [][]string `json:"constraints,omitempty"`
}

// Load reads and parses a jobs file. A missing path is not an error: it
// means this process registers nothing of its own.
func Load(path string) (*Spec, error) {
	if path == "" {
		return &Spec{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file %s: %w", path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", path, err)
	}
	return &spec, nil
}

// Register builds a Runnable for every job in spec and registers it with
// sched, then installs the constraint groups. Local jobs run under rt;
// remote jobs are dispatched through client using scripts for their
// archives.
func Register(ctx context.Context, sched *scheduler.Scheduler, spec *Spec, rt runtime.Runtime, records store.RecordStore, client *remote.Client, scripts remote.ScriptProvider, log *slog.Logger) error {
	for _, j := range spec.Jobs {
		runnable, err := build(j, rt, records, client, scripts)
		if err != nil {
			return fmt.Errorf("build runnable for %s: %w", j.Name, err)
		}
		registered, err := sched.RegisterJob(ctx, runnable)
		if err != nil {
			return fmt.Errorf("register %s: %w", j.Name, err)
		}
		if !registered {
			log.Warn("bootstrap: job already registered, skipping", "name", j.Name)
			continue
		}
		log.Info("bootstrap: registered job", "name", j.Name, "kind", j.Kind)
	}
	for _, group := range spec.Constraints {
		if _, err := sched.AddRunningConstraint(group); err != nil {
			return fmt.Errorf("add running constraint %v: %w", group, err)
		}
	}
	return nil
}

func build(j JobSpec, rt runtime.Runtime, records store.RecordStore, client *remote.Client, scripts remote.ScriptProvider) (registry.Runnable, error) {
	switch j.Kind {
	case "remote":
		if client == nil {
			return nil, fmt.Errorf("remote job %s configured but no executor client is wired", j.Name)
		}
		return remote.NewRunnable(j.Name, client, scripts, j.MaxExecutionMs, j.MaxIdleMs, j.PollingIntervalMs, j.Abortable), nil
	case "local", "":
		opts := runtime.StartOptions{
			Image:   j.Image,
			Command: j.Command,
			Env:     j.Env,
		}
		return local.NewRunnable(j.Name, rt, opts, records, j.MaxExecutionMs, j.MaxIdleMs, j.Abortable), nil
	default:
		return nil, fmt.Errorf("unknown job kind %q for %s", j.Kind, j.Name)
	}
}
