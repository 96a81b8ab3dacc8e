package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/transitdw/internal/api"
	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/metrics"
	"github.com/timmy/transitdw/internal/pipeline"
	"github.com/timmy/transitdw/internal/repository"
)

func main() {
	// Initialize logger first (rotation and format come from the environment)
	logOpts := logger.OptionsFromEnv()
	logOpts.Service = "transitdw-api"
	appLogger := logger.New(logOpts)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	gw := repository.NewGateway(db, repository.RetryOptions{
		Attempts:  cfg.Database.RetryAttempts,
		BaseDelay: cfg.Database.RetryBaseDelay,
	})

	collectors := metrics.New()
	orch := pipeline.NewOrchestrator(cfg, gw, pipeline.WithMetrics(collectors))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional in-process schedule
	var sched *pipeline.Scheduler
	if os.Getenv("SCHEDULE_ENABLED") == "true" {
		sched = pipeline.NewScheduler(orch, cfg.Schedule)
		if err := sched.Start(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	// Setup router
	router := api.SetupRouter(api.Dependencies{
		Gateway: gw,
		Runner:  orch,
		Metrics: collectors,
		Logger:  appLogger,
	}, cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()
	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
