package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/ledger"
	"conti/internal/storage"
)

// ReconcileWorker verifies cached account balances against the transaction
// history whenever a balance event arrives over AMQP.
type ReconcileWorker struct {
	storage     *storage.SQLiteRepository
	parallelism int
}

func NewReconcileWorker(storage *storage.SQLiteRepository, parallelism int) *ReconcileWorker {
	if parallelism < 1 {
		parallelism = 1
	}
	return &ReconcileWorker{
		storage:     storage,
		parallelism: parallelism,
	}
}

// HandleBalanceEvent reconciles the account named by a single AMQP event.
func (w *ReconcileWorker) HandleBalanceEvent(ctx context.Context, event *amqp.BalanceEvent) error {
	slog.InfoContext(ctx, "Processing balance event",
		"account_id", event.AccountID,
		"reason", event.Reason)

	var drift string
	err := w.storage.WithTx(ctx, func(q *storage.Queries) error {
		d, err := ledger.NewEngine(q).Reconcile(ctx, event.AccountID)
		if err != nil {
			return err
		}
		drift = d.String()
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile account %d: %w", event.AccountID, err)
	}

	if drift != "0" {
		slog.WarnContext(ctx, "Balance event revealed drift",
			"account_id", event.AccountID,
			"reason", event.Reason,
			"drift", drift)
	}
	return nil
}

// SweepAll reconciles every account. This is a backup mechanism in case
// AMQP messages are lost.
func (w *ReconcileWorker) SweepAll(ctx context.Context) error {
	accounts, err := w.storage.Queries().ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if len(accounts) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping account balances", "count", len(accounts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)
	for _, a := range accounts {
		g.Go(func() error {
			err := w.storage.WithTx(ctx, func(q *storage.Queries) error {
				_, err := ledger.NewEngine(q).Reconcile(ctx, a.ID)
				return err
			})
			if err != nil {
				return fmt.Errorf("reconcile account %d: %w", a.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
