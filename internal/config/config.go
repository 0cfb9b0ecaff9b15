// Package config handles environment variable loading for ports, database strings, etc.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the controller process: the
// scheduler, the HTTP control plane, the remote-job poll loop and the
// housekeeper.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// How often ExecuteQueuedJobs drains the queue for every registered name.
	QueueDrainInterval time.Duration

	// How often pollRemoteJobs checks remote job status.
	RemotePollInterval time.Duration

	// How often the housekeeper sweeps for max-execution/max-idle timeouts.
	HousekeeperInterval time.Duration

	// Base URI of the external executor host implementing the remote
	// start/status/stop protocol (e.g. "http://executor:7070/jobs/").
	RemoteExecutorURI string

	// Hostname this controller instance reports on JobRecord.Host.
	Host string

	// OTLP gRPC collector endpoint for trace export.
	OTLPEndpoint string

	// Shared secret required on the Authorization header of internal,
	// non-tenant endpoints such as POST /tenants.
	InternalSystemSecret string

	// Directory FileScriptProvider reads "<name>.tar.gz" archives from
	// for jobs dispatched to the remote executor host.
	ScriptsDir string

	// Path to a JSON file describing the job definitions this process
	// registers at startup. Empty means the process starts with an
	// empty registry, relying on some other process sharing the store
	// to have registered the jobs it cares about.
	JobsFile string

	// Name of the runtime backend this process runs local jobs on.
	// "docker" selects Docker; any other value, including empty, selects
	// "exec".
	LocalRuntimeBackend string

	// Root directory ExecRuntime uses for local job work directories.
	LocalWorkDir string
}

// ExecutorHostConfig holds configuration for the external executor host
// process that serves the start/status/stop protocol over HTTP.
type ExecutorHostConfig struct {
	// HTTP server port.
	HTTPPort int

	// Runtime backend: "exec", "docker" or "kubernetes".
	RuntimeBackend string

	// Root directory under which each job's scripts are untarred.
	WorkDir string

	// Kubernetes namespace used by the kubernetes runtime backend.
	KubernetesNamespace string
}

// Load reads controller configuration from environment variables.
func Load() (*Config, error) {
	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	port, err := intEnv("PORT", 6161)
	if err != nil {
		return nil, err
	}

	drainInterval, err := durationEnv("QUEUE_DRAIN_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, err
	}

	pollInterval, err := durationEnv("REMOTE_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	housekeeperInterval, err := durationEnv("HOUSEKEEPER_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	host := os.Getenv("HOST")
	if host == "" {
		host, _ = os.Hostname()
	}

	return &Config{
		DatabaseURL:          dbUrl,
		HTTPPort:             port,
		QueueDrainInterval:   drainInterval,
		RemotePollInterval:   pollInterval,
		HousekeeperInterval:  housekeeperInterval,
		RemoteExecutorURI:    os.Getenv("REMOTE_EXECUTOR_URI"),
		Host:                 host,
		OTLPEndpoint:         os.Getenv("OTLP_ENDPOINT"),
		InternalSystemSecret: os.Getenv("INTERNAL_SYSTEM_SECRET"),
		ScriptsDir:           os.Getenv("SCRIPTS_DIR"),
		JobsFile:             os.Getenv("JOBS_FILE"),
		LocalRuntimeBackend:  os.Getenv("LOCAL_RUNTIME_BACKEND"),
		LocalWorkDir:         os.Getenv("LOCAL_WORK_DIR"),
	}, nil
}

// LoadExecutorHost reads executor-host configuration from environment
// variables.
func LoadExecutorHost() (*ExecutorHostConfig, error) {
	port, err := intEnv("PORT", 7070)
	if err != nil {
		return nil, err
	}

	backend := os.Getenv("RUNTIME_BACKEND")
	if backend == "" {
		backend = "exec"
	}

	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = "/var/lib/jobplane/jobs"
	}

	return &ExecutorHostConfig{
		HTTPPort:            port,
		RuntimeBackend:      backend,
		WorkDir:             workDir,
		KubernetesNamespace: os.Getenv("KUBERNETES_NAMESPACE"),
	}, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}
