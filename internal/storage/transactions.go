package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (q *Queries) CreateIncome(ctx context.Context, in *core.Income) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO incomes (user_id, account_id, counterparty, description, amount, transacted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.AccountID, nullable(in.Counterparty), in.Description,
		in.Amount.String(), fmtTime(in.TransactedAt), fmtTime(in.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("income id: %w", err)
	}
	in.ID = id
	return nil
}

func (q *Queries) CreateExpense(ctx context.Context, e *core.Expense) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, account_id, counterparty, description, amount, transacted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.AccountID, nullable(e.Counterparty), e.Description,
		e.Amount.String(), fmtTime(e.TransactedAt), fmtTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("expense id: %w", err)
	}
	e.ID = id
	return nil
}

func (q *Queries) CreateTransfer(ctx context.Context, t *core.Transfer) error {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transfers (user_id, creditor_id, debtor_id, description, amount, transacted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CreditorID, t.DebtorID, t.Description,
		t.Amount.String(), fmtTime(t.TransactedAt), fmtTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transfer id: %w", err)
	}
	t.ID = id
	return nil
}

func scanMovement(row rowScanner) (id, userID, accountID int64, counterparty sql.NullString, description string, amount decimal.Decimal, transactedAt, createdAt string, err error) {
	var amountStr string
	err = row.Scan(&id, &userID, &accountID, &counterparty, &description, &amountStr, &transactedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = core.ErrNotFound
		}
		return
	}
	amount, err = decimal.NewFromString(amountStr)
	return
}

func (q *Queries) getMovement(ctx context.Context, table string, id int64) (*core.Income, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, account_id, counterparty, description, amount, transacted_at, created_at
		 FROM `+table+` WHERE id = ?`, id)

	mid, userID, accountID, counterparty, description, amount, transacted, created, err := scanMovement(row)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", table, err)
	}
	m := &core.Income{
		ID: mid, UserID: userID, AccountID: accountID,
		Description: description, Amount: amount,
	}
	if counterparty.Valid {
		c := counterparty.String
		m.Counterparty = &c
	}
	if m.TransactedAt, err = parseTime(transacted); err != nil {
		return nil, fmt.Errorf("parse transacted_at: %w", err)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return m, nil
}

func (q *Queries) GetIncome(ctx context.Context, id int64) (*core.Income, error) {
	return q.getMovement(ctx, "incomes", id)
}

func (q *Queries) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	m, err := q.getMovement(ctx, "expenses", id)
	if err != nil {
		return nil, err
	}
	e := core.Expense(*m)
	return &e, nil
}

func (q *Queries) GetTransfer(ctx context.Context, id int64) (*core.Transfer, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, creditor_id, debtor_id, description, amount, transacted_at, created_at
		 FROM transfers WHERE id = ?`, id)

	var (
		t                  core.Transfer
		amountStr          string
		transacted, created string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.CreditorID, &t.DebtorID, &t.Description, &amountStr, &transacted, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if t.TransactedAt, err = parseTime(transacted); err != nil {
		return nil, fmt.Errorf("parse transacted_at: %w", err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &t, nil
}

func (q *Queries) UpdateIncome(ctx context.Context, in *core.Income) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE incomes SET account_id = ?, counterparty = ?, description = ?, amount = ?, transacted_at = ? WHERE id = ?`,
		in.AccountID, nullable(in.Counterparty), in.Description, in.Amount.String(), fmtTime(in.TransactedAt), in.ID,
	)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return nil
}

func (q *Queries) UpdateExpense(ctx context.Context, e *core.Expense) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE expenses SET account_id = ?, counterparty = ?, description = ?, amount = ?, transacted_at = ? WHERE id = ?`,
		e.AccountID, nullable(e.Counterparty), e.Description, e.Amount.String(), fmtTime(e.TransactedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return nil
}

func (q *Queries) UpdateTransfer(ctx context.Context, t *core.Transfer) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transfers SET creditor_id = ?, debtor_id = ?, description = ?, amount = ?, transacted_at = ? WHERE id = ?`,
		t.CreditorID, t.DebtorID, t.Description, t.Amount.String(), fmtTime(t.TransactedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return nil
}

func (q *Queries) deleteByID(ctx context.Context, tagTable, tagColumn, table string, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM `+tagTable+` WHERE `+tagColumn+` = ?`, id); err != nil {
		return fmt.Errorf("delete %s links: %w", table, err)
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (q *Queries) DeleteIncome(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "income_tags", "income_id", "incomes", id)
}

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "expense_tags", "expense_id", "expenses", id)
}

func (q *Queries) DeleteTransfer(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "transfer_tags", "transfer_id", "transfers", id)
}

const deltaUnion = `
	SELECT 'income' AS kind, amount, transacted_at FROM incomes WHERE account_id = ?1
	UNION ALL
	SELECT 'expense', amount, transacted_at FROM expenses WHERE account_id = ?1
	UNION ALL
	SELECT 'transfer_in', amount, transacted_at FROM transfers WHERE creditor_id = ?1
	UNION ALL
	SELECT 'transfer_out', amount, transacted_at FROM transfers WHERE debtor_id = ?1`

func (q *Queries) scanDeltas(rows *sql.Rows) ([]core.Delta, error) {
	defer rows.Close()

	var deltas []core.Delta
	for rows.Next() {
		var (
			kind, amountStr, transacted string
			d                           core.Delta
			err                         error
		)
		if err = rows.Scan(&kind, &amountStr, &transacted); err != nil {
			return nil, fmt.Errorf("scan delta: %w", err)
		}
		d.Kind = core.DeltaKind(kind)
		if d.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("parse delta amount: %w", err)
		}
		if d.TransactedAt, err = parseTime(transacted); err != nil {
			return nil, fmt.Errorf("parse delta date: %w", err)
		}
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}

// DeltasInRange returns the signed transaction effects on an account with
// transacted_at in [from, to).
func (q *Queries) DeltasInRange(ctx context.Context, accountID int64, from, to time.Time) ([]core.Delta, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT kind, amount, transacted_at FROM (`+deltaUnion+`)
		 WHERE transacted_at >= ?2 AND transacted_at < ?3
		 ORDER BY transacted_at`,
		accountID, fmtTime(from), fmtTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("deltas in range: %w", err)
	}
	return q.scanDeltas(rows)
}

// AllDeltas returns every transaction effect on the account.
func (q *Queries) AllDeltas(ctx context.Context, accountID int64) ([]core.Delta, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT kind, amount, transacted_at FROM (`+deltaUnion+`) ORDER BY transacted_at`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("all deltas: %w", err)
	}
	return q.scanDeltas(rows)
}

// FirstTransactionDate returns the earliest transacted_at among the account's
// incomes, expenses, and transfers (either side), or nil if none exist.
func (q *Queries) FirstTransactionDate(ctx context.Context, accountID int64) (*time.Time, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT transacted_at FROM (`+deltaUnion+`) ORDER BY transacted_at LIMIT 1`,
		accountID,
	)
	var transacted string
	if err := row.Scan(&transacted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first transaction date: %w", err)
	}
	t, err := parseTime(transacted)
	if err != nil {
		return nil, fmt.Errorf("parse first transaction date: %w", err)
	}
	return &t, nil
}
