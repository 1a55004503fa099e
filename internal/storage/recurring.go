package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableCount(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func (q *Queries) CreateRecurringIncome(ctx context.Context, r *core.RecurringIncome) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_incomes (user_id, account_id, description, amount, next_transaction_at, frequency, remaining_recurrences)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.AccountID, r.Description, r.Amount.String(),
		fmtTime(r.NextTransactionAt), string(r.Frequency), nullableCount(r.RemainingRecurrences),
	)
	if err != nil {
		return fmt.Errorf("insert recurring income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recurring income id: %w", err)
	}
	r.ID = id
	return nil
}

func (q *Queries) CreateRecurringExpense(ctx context.Context, r *core.RecurringExpense) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (user_id, account_id, description, amount, next_transaction_at, frequency, remaining_recurrences)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, nullableID(r.AccountID), r.Description, r.Amount.String(),
		fmtTime(r.NextTransactionAt), string(r.Frequency), nullableCount(r.RemainingRecurrences),
	)
	if err != nil {
		return fmt.Errorf("insert recurring expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recurring expense id: %w", err)
	}
	r.ID = id
	return nil
}

func (q *Queries) CreateRecurringTransfer(ctx context.Context, r *core.RecurringTransfer) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_transfers (user_id, creditor_id, debtor_id, description, amount, next_transaction_at, frequency, remaining_recurrences)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, nullableID(r.CreditorID), nullableID(r.DebtorID), r.Description, r.Amount.String(),
		fmtTime(r.NextTransactionAt), string(r.Frequency), nullableCount(r.RemainingRecurrences),
	)
	if err != nil {
		return fmt.Errorf("insert recurring transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recurring transfer id: %w", err)
	}
	r.ID = id
	return nil
}

func scanRecurringCommon(amountStr, nextStr, freq string, remaining sql.NullInt64) (decimal.Decimal, time.Time, core.Frequency, *int64, error) {
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Zero, time.Time{}, "", nil, fmt.Errorf("parse recurring amount: %w", err)
	}
	next, err := parseTime(nextStr)
	if err != nil {
		return decimal.Zero, time.Time{}, "", nil, fmt.Errorf("parse next_transaction_at: %w", err)
	}
	var rem *int64
	if remaining.Valid {
		v := remaining.Int64
		rem = &v
	}
	return amount, next, core.Frequency(freq), rem, nil
}

// DueRecurringIncomes returns templates with next_transaction_at at or before
// now, oldest first.
func (q *Queries) DueRecurringIncomes(ctx context.Context, now time.Time) ([]core.RecurringIncome, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, account_id, description, amount, next_transaction_at, frequency, remaining_recurrences
		 FROM recurring_incomes WHERE next_transaction_at <= ? ORDER BY next_transaction_at`,
		fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("due recurring incomes: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringIncome
	for rows.Next() {
		var (
			r                        core.RecurringIncome
			amountStr, nextStr, freq string
			remaining                sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.AccountID, &r.Description, &amountStr, &nextStr, &freq, &remaining); err != nil {
			return nil, fmt.Errorf("scan recurring income: %w", err)
		}
		if r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences, err = scanRecurringCommon(amountStr, nextStr, freq, remaining); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) DueRecurringExpenses(ctx context.Context, now time.Time) ([]core.RecurringExpense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, account_id, description, amount, next_transaction_at, frequency, remaining_recurrences
		 FROM recurring_expenses WHERE next_transaction_at <= ? ORDER BY next_transaction_at`,
		fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringExpense
	for rows.Next() {
		var (
			r                        core.RecurringExpense
			accountID                sql.NullInt64
			amountStr, nextStr, freq string
			remaining                sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &accountID, &r.Description, &amountStr, &nextStr, &freq, &remaining); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		if accountID.Valid {
			v := accountID.Int64
			r.AccountID = &v
		}
		if r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences, err = scanRecurringCommon(amountStr, nextStr, freq, remaining); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) DueRecurringTransfers(ctx context.Context, now time.Time) ([]core.RecurringTransfer, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, creditor_id, debtor_id, description, amount, next_transaction_at, frequency, remaining_recurrences
		 FROM recurring_transfers WHERE next_transaction_at <= ? ORDER BY next_transaction_at`,
		fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("due recurring transfers: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransfer
	for rows.Next() {
		var (
			r                        core.RecurringTransfer
			creditorID, debtorID     sql.NullInt64
			amountStr, nextStr, freq string
			remaining                sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &creditorID, &debtorID, &r.Description, &amountStr, &nextStr, &freq, &remaining); err != nil {
			return nil, fmt.Errorf("scan recurring transfer: %w", err)
		}
		if creditorID.Valid {
			v := creditorID.Int64
			r.CreditorID = &v
		}
		if debtorID.Valid {
			v := debtorID.Int64
			r.DebtorID = &v
		}
		if r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences, err = scanRecurringCommon(amountStr, nextStr, freq, remaining); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) advanceRecurring(ctx context.Context, table string, id int64, next time.Time, remaining *int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE `+table+` SET next_transaction_at = ?, remaining_recurrences = ? WHERE id = ?`,
		fmtTime(next), nullableCount(remaining), id,
	)
	if err != nil {
		return fmt.Errorf("advance %s: %w", table, err)
	}
	return nil
}

func (q *Queries) AdvanceRecurringIncome(ctx context.Context, id int64, next time.Time, remaining *int64) error {
	return q.advanceRecurring(ctx, "recurring_incomes", id, next, remaining)
}

func (q *Queries) AdvanceRecurringExpense(ctx context.Context, id int64, next time.Time, remaining *int64) error {
	return q.advanceRecurring(ctx, "recurring_expenses", id, next, remaining)
}

func (q *Queries) AdvanceRecurringTransfer(ctx context.Context, id int64, next time.Time, remaining *int64) error {
	return q.advanceRecurring(ctx, "recurring_transfers", id, next, remaining)
}

func (q *Queries) DeleteRecurringIncome(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "recurring_income_tags", "recurring_income_id", "recurring_incomes", id)
}

func (q *Queries) DeleteRecurringExpense(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "recurring_expense_tags", "recurring_expense_id", "recurring_expenses", id)
}

func (q *Queries) DeleteRecurringTransfer(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "recurring_transfer_tags", "recurring_transfer_id", "recurring_transfers", id)
}
