package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/ledger"
	"conti/internal/storage"
)

// AccountService orchestrates account lifecycle and the maintenance
// operations that keep the snapshot ledger healthy: the monthly snapshot job,
// the admin backfill, and full reconciliation.
type AccountService struct {
	repo       *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewAccountService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *AccountService {
	return &AccountService{
		repo:       repo,
		amqpClient: amqpClient,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount inserts the account and seeds its snapshot chain. An account
// opened with an initial_date in a past month gets one snapshot per elapsed
// month immediately.
func (s *AccountService) CreateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CurrentBalance = a.InitialBalance

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateAccount(ctx, a); err != nil {
			return err
		}
		_, err := ledger.NewEngine(q).Backfill(ctx, a.ID, s.now())
		return err
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateAccount amends the account's metadata and rebuilds its ledger, since
// a changed initial_balance or initial_date invalidates every derived value.
func (s *AccountService) UpdateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.UpdateAccount(ctx, a); err != nil {
			return err
		}
		_, err := ledger.NewEngine(q).Backfill(ctx, a.ID, s.now())
		return err
	})
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.PublishBalanceEvent(ctx, a.ID, amqp.ReasonBackfill); err != nil {
			slog.ErrorContext(ctx, "Failed to publish balance event",
				"account_id", a.ID, "error", err)
		}
	}
	return nil
}

// DeleteAccount removes the account and everything hanging off it.
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		return q.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*core.Account, error) {
	return s.repo.Queries().GetAccount(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return s.repo.Queries().ListAccounts(ctx)
}

// BalanceHistory returns the account's snapshot rows, oldest first.
func (s *AccountService) BalanceHistory(ctx context.Context, accountID int64) ([]core.BalanceSnapshot, error) {
	return s.repo.Queries().ListSnapshots(ctx, accountID)
}

// RecordElapsedMonths runs the monthly snapshot job across every account.
// Failures are logged per account and do not stop the sweep. Returns the
// number of accounts that gained at least one snapshot.
func (s *AccountService) RecordElapsedMonths(ctx context.Context) (int, error) {
	accounts, err := s.repo.Queries().ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	now := s.now()
	recorded := 0
	for _, a := range accounts {
		var months int
		err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
			var err error
			months, err = ledger.NewEngine(q).RecordElapsedMonth(ctx, a.ID, now)
			return err
		})
		if err != nil {
			slog.ErrorContext(ctx, "Monthly snapshot failed for account",
				"account_id", a.ID, "error", err)
			continue
		}
		if months > 0 {
			recorded++
		}
	}

	slog.InfoContext(ctx, "Monthly snapshot sweep complete",
		"accounts", len(accounts), "recorded", recorded)
	return recorded, nil
}

// Backfill rebuilds a single account's snapshot chain and cached balance.
func (s *AccountService) Backfill(ctx context.Context, accountID int64) error {
	now := s.now()
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		months, err := ledger.NewEngine(q).Backfill(ctx, accountID, now)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Backfilled account", "account_id", accountID, "months", months)
		return nil
	})
	if err != nil {
		return fmt.Errorf("backfill account %d: %w", accountID, err)
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.PublishBalanceEvent(ctx, accountID, amqp.ReasonBackfill); err != nil {
			slog.ErrorContext(ctx, "Failed to publish balance event",
				"account_id", accountID, "error", err)
		}
	}
	return nil
}

// BackfillAll rebuilds the ledger of every account, at most parallelism
// accounts at a time. The first failure cancels the rest.
func (s *AccountService) BackfillAll(ctx context.Context, parallelism int) error {
	accounts, err := s.repo.Queries().ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	now := s.now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, a := range accounts {
		a := a
		g.Go(func() error {
			err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
				months, err := ledger.NewEngine(q).Backfill(ctx, a.ID, now)
				if err != nil {
					return err
				}
				slog.InfoContext(ctx, "Backfilled account",
					"account_id", a.ID, "name", a.Name, "months", months)
				return nil
			})
			if err != nil {
				return fmt.Errorf("backfill account %d: %w", a.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ReconcileAll recomputes every account's cached balance from its full
// history, correcting any drift.
func (s *AccountService) ReconcileAll(ctx context.Context, parallelism int) error {
	accounts, err := s.repo.Queries().ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, a := range accounts {
		a := a
		g.Go(func() error {
			err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
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
