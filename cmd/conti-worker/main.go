package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"conti/internal/amqp"
	"conti/internal/config"
	applog "conti/internal/log"
	"conti/internal/storage"
	"conti/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting conti-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	reconciler := worker.NewReconcileWorker(repo, cfg.BackfillParallelism)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// On startup, sweep every account in case events were lost while down
	logger.Info("Performing startup reconcile sweep...")
	if err := reconciler.SweepAll(ctx); err != nil {
		logger.Error("Startup sweep failed", "error", err)
		// Don't exit - continue with normal operation
	}

	// Consume balance events with automatic reconnection
	if cfg.AMQPURL != "" {
		go func() {
			err := amqp.ConsumeWithReconnect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, func(event *amqp.BalanceEvent) error {
				return reconciler.HandleBalanceEvent(ctx, event)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Balance event consumption failed", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic sweeps only")
	}

	// Periodic sweep catches accounts whose events never arrived
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reconciler.SweepAll(ctx); err != nil {
					logger.Error("Periodic sweep failed", "error", err)
				}
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down conti-worker...")
	cancel()

	// Give the consumer a moment to ack in-flight deliveries
	time.Sleep(2 * time.Second)
	logger.Info("Conti-worker shutdown complete")
}
