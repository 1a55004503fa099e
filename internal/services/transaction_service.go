package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/ledger"
	"conti/internal/storage"
)

// TransactionService orchestrates transaction mutations. Every create,
// update, and delete runs the row write, the tag links, and the balance
// engine update inside one transaction, then publishes a balance event after
// commit.
//
// Updates are modeled as a reversal of the old row's effect followed by the
// new row's effect, which also covers moving a transaction between accounts.
type TransactionService struct {
	repo       *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewTransactionService(repo *storage.SQLiteRepository, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		repo:       repo,
		amqpClient: amqpClient,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TransactionService) publishBalanceEvent(ctx context.Context, accountID int64, reason string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishBalanceEvent(ctx, accountID, reason); err != nil {
		// The event is advisory; the worker's periodic sweep covers missed ones.
		slog.ErrorContext(ctx, "Failed to publish balance event",
			"account_id", accountID, "reason", reason, "error", err)
	}
}

// CreateIncome records an income and credits its account.
func (s *TransactionService) CreateIncome(ctx context.Context, in *core.Income, tagIDs []int64) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("validate income: %w", err)
	}

	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateIncome(ctx, in); err != nil {
			return err
		}
		if err := q.LinkIncomeTags(ctx, in.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		return engine.ApplyTransactionChange(ctx, in.AccountID, in.TransactedAt, in.Amount, s.now())
	})
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}

	s.publishBalanceEvent(ctx, in.AccountID, amqp.ReasonIncome)
	return nil
}

// UpdateIncome amends an income, reversing the old effect and applying the
// new one. The old and new account may differ.
func (s *TransactionService) UpdateIncome(ctx context.Context, in *core.Income, tagIDs []int64) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("validate income: %w", err)
	}

	var oldAccountID int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetIncome(ctx, in.ID)
		if err != nil {
			return err
		}
		oldAccountID = old.AccountID
		if err := q.UpdateIncome(ctx, in); err != nil {
			return err
		}
		if err := q.ReplaceIncomeTags(ctx, in.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		now := s.now()
		if err := engine.ApplyTransactionChange(ctx, old.AccountID, old.TransactedAt, old.Amount.Neg(), now); err != nil {
			return err
		}
		return engine.ApplyTransactionChange(ctx, in.AccountID, in.TransactedAt, in.Amount, now)
	})
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}

	s.publishBalanceEvent(ctx, oldAccountID, amqp.ReasonIncome)
	if in.AccountID != oldAccountID {
		s.publishBalanceEvent(ctx, in.AccountID, amqp.ReasonIncome)
	}
	return nil
}

// DeleteIncome removes an income and debits its account by the recorded
// amount.
func (s *TransactionService) DeleteIncome(ctx context.Context, id int64) error {
	var accountID int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetIncome(ctx, id)
		if err != nil {
			return err
		}
		accountID = old.AccountID
		if err := q.DeleteIncome(ctx, id); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		return engine.ApplyTransactionChange(ctx, old.AccountID, old.TransactedAt, old.Amount.Neg(), s.now())
	})
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}

	s.publishBalanceEvent(ctx, accountID, amqp.ReasonIncome)
	return nil
}

// CreateExpense records an expense and debits its account.
func (s *TransactionService) CreateExpense(ctx context.Context, e *core.Expense, tagIDs []int64) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateExpense(ctx, e); err != nil {
			return err
		}
		if err := q.LinkExpenseTags(ctx, e.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		return engine.ApplyTransactionChange(ctx, e.AccountID, e.TransactedAt, e.Amount.Neg(), s.now())
	})
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	s.publishBalanceEvent(ctx, e.AccountID, amqp.ReasonExpense)
	return nil
}

// UpdateExpense amends an expense the same way UpdateIncome does, with the
// signs flipped.
func (s *TransactionService) UpdateExpense(ctx context.Context, e *core.Expense, tagIDs []int64) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}

	var oldAccountID int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetExpense(ctx, e.ID)
		if err != nil {
			return err
		}
		oldAccountID = old.AccountID
		if err := q.UpdateExpense(ctx, e); err != nil {
			return err
		}
		if err := q.ReplaceExpenseTags(ctx, e.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		now := s.now()
		if err := engine.ApplyTransactionChange(ctx, old.AccountID, old.TransactedAt, old.Amount, now); err != nil {
			return err
		}
		return engine.ApplyTransactionChange(ctx, e.AccountID, e.TransactedAt, e.Amount.Neg(), now)
	})
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	s.publishBalanceEvent(ctx, oldAccountID, amqp.ReasonExpense)
	if e.AccountID != oldAccountID {
		s.publishBalanceEvent(ctx, e.AccountID, amqp.ReasonExpense)
	}
	return nil
}

// DeleteExpense removes an expense and credits its account back.
func (s *TransactionService) DeleteExpense(ctx context.Context, id int64) error {
	var accountID int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		accountID = old.AccountID
		if err := q.DeleteExpense(ctx, id); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		return engine.ApplyTransactionChange(ctx, old.AccountID, old.TransactedAt, old.Amount, s.now())
	})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publishBalanceEvent(ctx, accountID, amqp.ReasonExpense)
	return nil
}

// CreateTransfer records a transfer: a credit on the creditor account and a
// debit on the debtor account, applied independently to each.
func (s *TransactionService) CreateTransfer(ctx context.Context, t *core.Transfer, tagIDs []int64) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transfer: %w", err)
	}

	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.CreateTransfer(ctx, t); err != nil {
			return err
		}
		if err := q.LinkTransferTags(ctx, t.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		now := s.now()
		if err := engine.ApplyTransactionChange(ctx, t.CreditorID, t.TransactedAt, t.Amount, now); err != nil {
			return err
		}
		return engine.ApplyTransactionChange(ctx, t.DebtorID, t.TransactedAt, t.Amount.Neg(), now)
	})
	if err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}

	s.publishBalanceEvent(ctx, t.CreditorID, amqp.ReasonTransfer)
	s.publishBalanceEvent(ctx, t.DebtorID, amqp.ReasonTransfer)
	return nil
}

// UpdateTransfer amends a transfer, reversing the old effect on both original
// accounts and applying the new effect on both current accounts.
func (s *TransactionService) UpdateTransfer(ctx context.Context, t *core.Transfer, tagIDs []int64) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transfer: %w", err)
	}

	touched := make(map[int64]struct{})
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransfer(ctx, t.ID)
		if err != nil {
			return err
		}
		if err := q.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		if err := q.ReplaceTransferTags(ctx, t.ID, tagIDs); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		now := s.now()
		if err := engine.ApplyTransactionChange(ctx, old.CreditorID, old.TransactedAt, old.Amount.Neg(), now); err != nil {
			return err
		}
		if err := engine.ApplyTransactionChange(ctx, old.DebtorID, old.TransactedAt, old.Amount, now); err != nil {
			return err
		}
		if err := engine.ApplyTransactionChange(ctx, t.CreditorID, t.TransactedAt, t.Amount, now); err != nil {
			return err
		}
		if err := engine.ApplyTransactionChange(ctx, t.DebtorID, t.TransactedAt, t.Amount.Neg(), now); err != nil {
			return err
		}
		for _, id := range []int64{old.CreditorID, old.DebtorID, t.CreditorID, t.DebtorID} {
			touched[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}

	for id := range touched {
		s.publishBalanceEvent(ctx, id, amqp.ReasonTransfer)
	}
	return nil
}

// DeleteTransfer removes a transfer and reverses its effect on both accounts.
func (s *TransactionService) DeleteTransfer(ctx context.Context, id int64) error {
	var creditorID, debtorID int64
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransfer(ctx, id)
		if err != nil {
			return err
		}
		creditorID, debtorID = old.CreditorID, old.DebtorID
		if err := q.DeleteTransfer(ctx, id); err != nil {
			return err
		}
		engine := ledger.NewEngine(q)
		now := s.now()
		if err := engine.ApplyTransactionChange(ctx, old.CreditorID, old.TransactedAt, old.Amount.Neg(), now); err != nil {
			return err
		}
		return engine.ApplyTransactionChange(ctx, old.DebtorID, old.TransactedAt, old.Amount, now)
	})
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}

	s.publishBalanceEvent(ctx, creditorID, amqp.ReasonTransfer)
	s.publishBalanceEvent(ctx, debtorID, amqp.ReasonTransfer)
	return nil
}
