package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/ledger"
	"conti/internal/storage"
)

// RecurringAdvancer materializes transactions from due recurring templates
// and moves each schedule forward by one period per run.
//
// Each template is processed in its own transaction: the materialized row,
// its copied tags, the balance update, and the schedule advance commit or
// roll back together. A failing template is logged and skipped so one bad
// row cannot stall the whole schedule.
type RecurringAdvancer struct {
	repo       *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewRecurringAdvancer(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *RecurringAdvancer {
	return &RecurringAdvancer{
		repo:       repo,
		amqpClient: amqpClient,
	}
}

// CreateRecurringIncome validates and stores a template, linking its tags.
func (p *RecurringAdvancer) CreateRecurringIncome(ctx context.Context, r *core.RecurringIncome, tagIDs []int64) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validate recurring income: %w", err)
	}
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateRecurringIncome(ctx, r); err != nil {
			return err
		}
		return q.LinkRecurringIncomeTags(ctx, r.ID, tagIDs)
	})
	if err != nil {
		return fmt.Errorf("create recurring income: %w", err)
	}
	return nil
}

func (p *RecurringAdvancer) CreateRecurringExpense(ctx context.Context, r *core.RecurringExpense, tagIDs []int64) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validate recurring expense: %w", err)
	}
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateRecurringExpense(ctx, r); err != nil {
			return err
		}
		return q.LinkRecurringExpenseTags(ctx, r.ID, tagIDs)
	})
	if err != nil {
		return fmt.Errorf("create recurring expense: %w", err)
	}
	return nil
}

func (p *RecurringAdvancer) CreateRecurringTransfer(ctx context.Context, r *core.RecurringTransfer, tagIDs []int64) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("validate recurring transfer: %w", err)
	}
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateRecurringTransfer(ctx, r); err != nil {
			return err
		}
		return q.LinkRecurringTransferTags(ctx, r.ID, tagIDs)
	})
	if err != nil {
		return fmt.Errorf("create recurring transfer: %w", err)
	}
	return nil
}

// ProcessDue materializes every template whose next_transaction_at has
// arrived. Returns the number of templates successfully processed.
func (p *RecurringAdvancer) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	runID := uuid.NewString()
	q := p.repo.Queries()

	incomes, err := q.DueRecurringIncomes(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("due recurring incomes: %w", err)
	}
	expenses, err := q.DueRecurringExpenses(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("due recurring expenses: %w", err)
	}
	transfers, err := q.DueRecurringTransfers(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("due recurring transfers: %w", err)
	}

	slog.InfoContext(ctx, "Processing due recurring transactions",
		"run_id", runID,
		"incomes", len(incomes),
		"expenses", len(expenses),
		"transfers", len(transfers),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, r := range incomes {
		if err := p.processIncome(ctx, r, now); err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring income",
				"run_id", runID, "recurring_id", r.ID, "error", err)
			continue
		}
		p.publish(ctx, r.AccountID)
		processed++
	}
	for _, r := range expenses {
		accountID, err := p.processExpense(ctx, r, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring expense",
				"run_id", runID, "recurring_id", r.ID, "error", err)
			continue
		}
		if accountID != nil {
			p.publish(ctx, *accountID)
		}
		processed++
	}
	for _, r := range transfers {
		materialized, err := p.processTransfer(ctx, r, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring transfer",
				"run_id", runID, "recurring_id", r.ID, "error", err)
			continue
		}
		if materialized {
			p.publish(ctx, *r.CreditorID)
			p.publish(ctx, *r.DebtorID)
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"run_id", runID, "processed", processed)
	return processed, nil
}

func (p *RecurringAdvancer) publish(ctx context.Context, accountID int64) {
	if p.amqpClient == nil {
		return
	}
	if err := p.amqpClient.PublishBalanceEvent(ctx, accountID, amqp.ReasonRecurring); err != nil {
		slog.ErrorContext(ctx, "Failed to publish balance event",
			"account_id", accountID, "error", err)
	}
}

// advance moves the template one period forward, decrementing the remaining
// count. When the count reaches zero the template is deleted instead.
func advance(ctx context.Context,
	next time.Time, freq core.Frequency, remaining *int64,
	advanceFn func(context.Context, int64, time.Time, *int64) error,
	deleteFn func(context.Context, int64) error, id int64) error {

	adv, err := AdvancerFor(freq)
	if err != nil {
		return err
	}

	if remaining != nil {
		n := *remaining - 1
		if n == 0 {
			return deleteFn(ctx, id)
		}
		remaining = &n
	}
	return advanceFn(ctx, id, adv.Next(next), remaining)
}

func (p *RecurringAdvancer) processIncome(ctx context.Context, r core.RecurringIncome, now time.Time) error {
	return p.repo.WithTx(ctx, func(q *storage.Queries) error {
		in := &core.Income{
			UserID:       r.UserID,
			AccountID:    r.AccountID,
			Description:  r.Description,
			Amount:       r.Amount,
			TransactedAt: r.NextTransactionAt,
			CreatedAt:    now,
		}
		if err := q.CreateIncome(ctx, in); err != nil {
			return err
		}
		tagIDs, err := q.RecurringIncomeTagIDs(ctx, r.ID)
		if err != nil {
			return err
		}
		if err := q.LinkIncomeTags(ctx, in.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		if err := engine.ApplyTransactionChange(ctx, in.AccountID, in.TransactedAt, in.Amount, now); err != nil {
			return err
		}
		return advance(ctx, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences,
			q.AdvanceRecurringIncome, q.DeleteRecurringIncome, r.ID)
	})
}

// processExpense returns the debited account's ID, or nil when the template
// has no account and only its schedule advanced.
func (p *RecurringAdvancer) processExpense(ctx context.Context, r core.RecurringExpense, now time.Time) (*int64, error) {
	var accountID *int64
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		if r.Materializes() {
			e := &core.Expense{
				UserID:       r.UserID,
				AccountID:    *r.AccountID,
				Description:  r.Description,
				Amount:       r.Amount,
				TransactedAt: r.NextTransactionAt,
				CreatedAt:    now,
			}
			if err := q.CreateExpense(ctx, e); err != nil {
				return err
			}
			tagIDs, err := q.RecurringExpenseTagIDs(ctx, r.ID)
			if err != nil {
				return err
			}
			if err := q.LinkExpenseTags(ctx, e.ID, tagIDs); err != nil {
				return err
			}
			engine := ledger.NewEngine(q)
			if err := engine.ApplyTransactionChange(ctx, e.AccountID, e.TransactedAt, e.Amount.Neg(), now); err != nil {
				return err
			}
			accountID = r.AccountID
		}
		return advance(ctx, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences,
			q.AdvanceRecurringExpense, q.DeleteRecurringExpense, r.ID)
	})
	if err != nil {
		return nil, err
	}
	return accountID, nil
}

// processTransfer reports whether a transfer row was materialized. Templates
// missing either account reference advance without one.
func (p *RecurringAdvancer) processTransfer(ctx context.Context, r core.RecurringTransfer, now time.Time) (bool, error) {
	materialized := false
	err := p.repo.WithTx(ctx, func(q *storage.Queries) error {
		if r.Materializes() {
			t := &core.Transfer{
				UserID:       r.UserID,
				CreditorID:   *r.CreditorID,
				DebtorID:     *r.DebtorID,
				Description:  r.Description,
				Amount:       r.Amount,
				TransactedAt: r.NextTransactionAt,
				CreatedAt:    now,
			}
			if err := q.CreateTransfer(ctx, t); err != nil {
				return err
			}
			tagIDs, err := q.RecurringTransferTagIDs(ctx, r.ID)
			if err != nil {
				return err
			}
			if err := q.LinkTransferTags(ctx, t.ID, tagIDs); err != nil {
				return err
			}
			engine := ledger.NewEngine(q)
			if err := engine.ApplyTransactionChange(ctx, t.CreditorID, t.TransactedAt, t.Amount, now); err != nil {
				return err
			}
			if err := engine.ApplyTransactionChange(ctx, t.DebtorID, t.TransactedAt, t.Amount.Neg(), now); err != nil {
				return err
			}
			materialized = true
		}
		return advance(ctx, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences,
			q.AdvanceRecurringTransfer, q.DeleteRecurringTransfer, r.ID)
	})
	if err != nil {
		return false, err
	}
	return materialized, nil
}
