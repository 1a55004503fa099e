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
	"conti/internal/services"
	"conti/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	// Initialize AMQP client so the balance worker hears about what we post.
	// Without a broker the worker still posts transactions, just silently.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without publishing", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled - balance events will not be published")
	}

	advancer := services.NewRecurringAdvancer(repo, amqpClient)
	accounts := services.NewAccountService(repo, amqpClient)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring advancer configured",
		"advancer_interval", cfg.AdvancerInterval,
		"snapshot_interval", cfg.SnapshotInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	advancerTicker := time.NewTicker(cfg.AdvancerInterval)
	defer advancerTicker.Stop()

	snapshotTicker := time.NewTicker(cfg.SnapshotInterval)
	defer snapshotTicker.Stop()

	// Run initial processing on startup
	logger.Info("Running initial recurring processing...")
	if count, err := advancer.ProcessDue(ctx, time.Now().UTC()); err != nil {
		logger.Error("Initial processing failed", "error", err)
	} else {
		logger.Info("Initial processing complete", "transactions_created", count)
	}
	if count, err := accounts.RecordElapsedMonths(ctx); err != nil {
		logger.Error("Initial snapshot run failed", "error", err)
	} else {
		logger.Info("Initial snapshot run complete", "accounts_updated", count)
	}

	// Start periodic processing
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-advancerTicker.C:
				logger.Info("Processing due recurring transactions...")
				count, err := advancer.ProcessDue(ctx, now.UTC())
				if err != nil {
					logger.Error("Periodic processing failed", "error", err)
				} else {
					logger.Info("Periodic processing complete",
						"transactions_created", count,
						"next_check", now.Add(cfg.AdvancerInterval).Format("15:04:05"))
				}
			case <-snapshotTicker.C:
				count, err := accounts.RecordElapsedMonths(ctx)
				if err != nil {
					logger.Error("Periodic snapshot run failed", "error", err)
				} else if count > 0 {
					logger.Info("Periodic snapshot run complete", "accounts_updated", count)
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

	logger.Info("Shutting down recurring-worker...")
	cancel()
	logger.Info("Recurring-worker shutdown complete")
}
