package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/toolsascode/sqldatabase/internal/config"
	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queuefactory"
	"github.com/toolsascode/sqldatabase/internal/worker"
)

func main() {
	configPath := flag.String("configuration", "", "Path to the YAML configuration file (default: $SQLDATABASE_CONFIG)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	logger.SetFormat(cfg.Log.Format)

	// Check if queue is enabled
	if !cfg.Queue.Enabled {
		logger.Fatalf("Queue is not enabled. Set SQLDATABASE_QUEUE_ENABLED=true to use the worker")
	}

	runner, err := executor.NewRunnerFromConfig(cfg, "")
	if err != nil {
		logger.Fatalf("Failed to create runner: %v", err)
	}
	defer func() { _ = runner.Close() }()

	// Create queue
	q, err := queuefactory.NewQueue(cfg.QueueConfig())
	if err != nil {
		logger.Fatalf("Failed to create queue: %v", err)
	}

	// Create worker
	w := worker.NewWorker(runner, runner.Adapter().DatabaseName(), q)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start worker in goroutine
	go func() {
		if err := w.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("Worker error: %v", err)
			sigChan <- syscall.SIGTERM
		}
	}()

	logger.Infof("Upgrade worker started for database [%s]. Press Ctrl+C to stop.", runner.Adapter().DatabaseName())

	// Wait for signal
	<-sigChan
	logger.Info("Shutting down worker...")
	cancel()

	// Stop worker
	if err := w.Stop(); err != nil {
		logger.Errorf("Error stopping worker: %v", err)
	}

	logger.Info("Worker stopped")
}
