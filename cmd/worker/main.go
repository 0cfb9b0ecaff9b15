// Package main is the entry point for the jobplane executor host: the
// process that serves the remote-job wire protocol (start/status/stop) on
// top of a configurable execution backend.
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

	"jobplane/internal/config"
	"jobplane/internal/executorhost"
	"jobplane/internal/observability"
	"jobplane/internal/runtime"
)

func main() {
	cfg, err := config.LoadExecutorHost()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := observability.Init(ctx, "jobplane-executorhost", os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize runtime backend %q: %v", cfg.RuntimeBackend, err)
	}
	logger.Info("executor host runtime selected", "backend", cfg.RuntimeBackend, "workdir", cfg.WorkDir)

	host := executorhost.New(rt, cfg.WorkDir)
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := executorhost.Server(addr, host)

	go func() {
		logger.Info("jobplane executor host starting", "addr", addr)
		if err := executorhost.Run(ctx, srv); err != nil {
			logger.Error("executor host server stopped", "error", err)
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

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		logger.Info("executor host metrics listening", "addr", ":6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down executor host")
	cancel()
}

func newRuntime(cfg *config.ExecutorHostConfig, log *slog.Logger) (runtime.Runtime, error) {
	switch cfg.RuntimeBackend {
	case "docker":
		return runtime.NewDockerRuntime()
	case "kubernetes":
		return runtime.NewKubernetesRuntime(runtime.KubernetesConfig{
			Namespace: cfg.KubernetesNamespace,
		}, log)
	default:
		return runtime.NewExecRuntime(cfg.WorkDir), nil
	}
}
