package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"query_router/config"
	"query_router/internal/bootstrap"
	"query_router/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all, analyze")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	bootstrap.InitLogger(cfg)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	ctx := context.Background()
	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(deps, nil)
	case "worker":
		runWorker(deps)
	case "all":
		w := bootstrap.NewWorker(deps)
		if err := w.Start(); err != nil {
			logger.Fatal("Failed to start worker: %v", err)
		}
		runAPI(deps, w)
	case "analyze":
		runAnalysis(ctx, deps)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runAPI(deps *bootstrap.Dependencies, w *bootstrap.Worker) {
	app, stop := bootstrap.NewAPI(deps)
	defer stop()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		}
	}()

	addr := ":" + deps.Config.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("Server stopped: %v", err)
	}

	if w != nil {
		w.Stop()
	}
	logger.Info("API server shut down")
}

func runWorker(deps *bootstrap.Dependencies) {
	w := bootstrap.NewWorker(deps)

	logger.Info("Starting worker...")
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start worker: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker shut down gracefully")
	case <-time.After(shutdownTimeout):
		logger.Warn("Worker shutdown timed out, forcing exit")
	}
}

func runAnalysis(ctx context.Context, deps *bootstrap.Dependencies) {
	report, err := bootstrap.RunAnalysis(ctx, deps)
	if err != nil {
		logger.Fatal("Analysis failed: %v", err)
	}
	logger.Info("Analysis done: %d tickets scanned, %d reassigned, %d team and %d keyword patterns in %v",
		report.TicketsScanned, report.TicketsReassigned, report.TeamPatterns, report.KeywordPatterns, report.Duration)
}
