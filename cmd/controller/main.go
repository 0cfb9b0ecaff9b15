// Package main is the entry point for the jobplane controller: the
// process serving the §6.1 HTTP API and driving admission, queue
// draining, remote-job polling and housekeeping sweeps against a shared
// Postgres store.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobplane/internal/bootstrap"
	"jobplane/internal/config"
	"jobplane/internal/controller"
	"jobplane/internal/housekeeper"
	"jobplane/internal/observability"
	"jobplane/internal/registry"
	"jobplane/internal/remote"
	"jobplane/internal/runtime"
	"jobplane/internal/scheduler"
	"jobplane/internal/store"
	"jobplane/internal/store/postgres"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	shutdownTracer, err := observability.Init(ctx, "jobplane-controller", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("failed to shutdown metrics: %v", err)
		}
	}()

	reg := registry.New()
	sched := scheduler.New(reg, db, db, cfg.Host, logger)

	rt := newLocalRuntime(cfg)

	var remoteClient *remote.Client
	if cfg.RemoteExecutorURI != "" {
		remoteClient = remote.NewClient(cfg.RemoteExecutorURI)
	}
	var scripts remote.ScriptProvider
	if cfg.ScriptsDir != "" {
		scripts = remote.NewFileScriptProvider(cfg.ScriptsDir)
	}

	jobsSpec, err := bootstrap.Load(cfg.JobsFile)
	if err != nil {
		log.Fatalf("failed to load jobs file: %v", err)
	}
	if err := bootstrap.Register(ctx, sched, jobsSpec, rt, db, remoteClient, scripts, logger); err != nil {
		log.Fatalf("failed to register jobs: %v", err)
	}

	registerQueueDepthGauge(sched, db, logger)

	hk := housekeeper.New(reg, db, 7*24*time.Hour, logger)
	go hk.Run(ctx, cfg.HousekeeperInterval)

	go runDrainLoop(ctx, sched, cfg.QueueDrainInterval)

	if remoteClient != nil {
		supervisor := remote.NewSupervisor(reg, db, remoteClient, logger)
		go runPollLoop(ctx, supervisor, cfg.RemotePollInterval)
	}

	srv := controller.New(controller.Config{
		Addr:                 fmt.Sprintf(":%d", cfg.HTTPPort),
		InternalSystemSecret: cfg.InternalSystemSecret,
		Log:                  logger,
	}, sched, db)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		logger.Info("controller metrics listening", "addr", ":6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		logger.Info("jobplane controller starting", "port", cfg.HTTPPort)
		if err := srv.Run(ctx); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down controller")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sched.ShutdownJobs(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("controller exited properly")
}

func newLocalRuntime(cfg *config.Config) runtime.Runtime {
	if cfg.LocalRuntimeBackend == "docker" {
		rt, err := runtime.NewDockerRuntime()
		if err != nil {
			log.Fatalf("failed to initialize docker runtime: %v", err)
		}
		return rt
	}
	return runtime.NewExecRuntime(cfg.LocalWorkDir)
}

// registerQueueDepthGauge wires an async OTel gauge that sums queued
// records across every registered job name, sampled only when scraped.
func registerQueueDepthGauge(sched *scheduler.Scheduler, records store.RecordStore, log *slog.Logger) {
	meter := otel.Meter("jobplane-controller")
	_, err := meter.Int64ObservableGauge("jobplane.queue.depth",
		metric.WithDescription("Sum of queued records across every registered job name"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			var total int64
			for _, name := range sched.ListJobNames() {
				queued, err := records.FindByNameAndState(ctx, name, store.RunningStateQueued)
				if err != nil {
					log.Error("queue depth metric: find queued failed", "name", name, "error", err)
					continue
				}
				total += int64(len(queued))
			}
			obs.Observe(total)
			return nil
		}),
	)
	if err != nil {
		log.Error("failed to register queue depth metric", "error", err)
	}
}

func runDrainLoop(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sched.ExecuteQueuedJobs(ctx)
		}
	}
}

func runPollLoop(ctx context.Context, supervisor *remote.Supervisor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			supervisor.Poll(ctx)
		}
	}
}
