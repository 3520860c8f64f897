package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/toolsascode/sqldatabase/internal/api/http"
	"github.com/toolsascode/sqldatabase/internal/auth"
	"github.com/toolsascode/sqldatabase/internal/config"
	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/queuefactory"
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

	logger.Info("Initializing sqldatabase server...")

	runner, err := executor.NewRunnerFromConfig(cfg, "")
	if err != nil {
		logger.Fatalf("Failed to create runner: %v", err)
	}
	defer func() { _ = runner.Close() }()

	// Initialize queue if enabled
	if cfg.Queue.Enabled {
		q, err := queuefactory.NewQueue(cfg.QueueConfig())
		if err != nil {
			logger.Fatalf("Failed to create queue: %v", err)
		}
		defer func() { _ = q.Close() }()

		runner.SetQueue(q)
		logger.Info("Queue enabled - upgrades will be queued for async execution")
	}

	if cfg.Server.APIToken == "" {
		logger.Warn("No API token configured - sequence and upgrade requests will be rejected")
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.NewHandler(runner, auth.NewTokenValidator(cfg.Server.APIToken)))

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting HTTP server on port %s", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	logger.Infof("sqldatabase server started for %s database [%s]", runner.Adapter().Name(), runner.Adapter().DatabaseName())
	logger.Infof("HTTP API available at http://localhost:%s", cfg.Server.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
