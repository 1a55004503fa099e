package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"conti/internal/config"
	applog "conti/internal/log"
	"conti/internal/services"
	"conti/internal/storage"
)

// One-shot admin tool that rebuilds every snapshot chain from raw
// transaction history and reseeds the cached balances. Run it after
// restoring a database or when drift warnings pile up in the logs.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	var accountID int64
	flag.Int64Var(&accountID, "account", 0, "backfill a single account instead of all")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	accounts := services.NewAccountService(repo, nil)

	ctx := context.Background()
	start := time.Now()

	if accountID != 0 {
		logger.Info("Backfilling account", "account_id", accountID)
		if err := accounts.Backfill(ctx, accountID); err != nil {
			logger.Error("Backfill failed", "account_id", accountID, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Backfilling all accounts", "parallelism", cfg.BackfillParallelism)
		if err := accounts.BackfillAll(ctx, cfg.BackfillParallelism); err != nil {
			logger.Error("Backfill failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Backfill complete", "duration", time.Since(start).Round(time.Millisecond))
}
