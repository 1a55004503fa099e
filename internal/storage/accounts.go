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

func (q *Queries) CreateUser(ctx context.Context, name string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (name, created_at) VALUES (?, ?)`,
		name, fmtTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) CreateAccount(ctx context.Context, a *core.Account) error {
	var rate any
	if a.InterestRate != nil {
		rate = a.InterestRate.String()
	}
	var billing any
	if a.BillingDay != nil {
		billing = *a.BillingDay
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, initial_balance, initial_date, current_balance, interest_rate, billing_day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, string(a.Type), a.InitialBalance.String(), fmtDate(a.InitialDate),
		a.CurrentBalance.String(), rate, billing, fmtTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("account id: %w", err)
	}
	a.ID = id
	return nil
}

const accountColumns = `id, user_id, name, type, initial_balance, initial_date, current_balance, interest_rate, billing_day, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*core.Account, error) {
	var (
		a                  core.Account
		accType            string
		initBal, curBal    string
		initDate, created  string
		rate               sql.NullString
		billing            sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &accType, &initBal, &initDate, &curBal, &rate, &billing, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Type = core.AccountType(accType)
	if a.InitialBalance, err = decimal.NewFromString(initBal); err != nil {
		return nil, fmt.Errorf("parse initial balance: %w", err)
	}
	if a.CurrentBalance, err = decimal.NewFromString(curBal); err != nil {
		return nil, fmt.Errorf("parse current balance: %w", err)
	}
	if a.InitialDate, err = parseDate(initDate); err != nil {
		return nil, fmt.Errorf("parse initial date: %w", err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created at: %w", err)
	}
	if rate.Valid {
		r, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("parse interest rate: %w", err)
		}
		a.InterestRate = &r
	}
	if billing.Valid {
		b := int(billing.Int64)
		a.BillingDay = &b
	}
	return &a, nil
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (*core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (q *Queries) UpdateAccount(ctx context.Context, a *core.Account) error {
	var rate any
	if a.InterestRate != nil {
		rate = a.InterestRate.String()
	}
	var billing any
	if a.BillingDay != nil {
		billing = *a.BillingDay
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, initial_balance = ?, initial_date = ?, interest_rate = ?, billing_day = ?
		 WHERE id = ?`,
		a.Name, string(a.Type), a.InitialBalance.String(), fmtDate(a.InitialDate), rate, billing, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET current_balance = ? WHERE id = ?`,
		balance.String(), id,
	)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

// DeleteAccount removes the account and everything hanging off it. Dependents
// are deleted explicitly so the cascade does not depend on the connection's
// foreign_keys pragma.
func (q *Queries) DeleteAccount(ctx context.Context, id int64) error {
	stmts := []string{
		`DELETE FROM income_tags WHERE income_id IN (SELECT id FROM incomes WHERE account_id = ?)`,
		`DELETE FROM expense_tags WHERE expense_id IN (SELECT id FROM expenses WHERE account_id = ?)`,
		`DELETE FROM transfer_tags WHERE transfer_id IN (SELECT id FROM transfers WHERE creditor_id = ? OR debtor_id = ?)`,
		`DELETE FROM incomes WHERE account_id = ?`,
		`DELETE FROM expenses WHERE account_id = ?`,
		`DELETE FROM transfers WHERE creditor_id = ? OR debtor_id = ?`,
		`DELETE FROM balances WHERE account_id = ?`,
		`UPDATE recurring_expenses SET account_id = NULL WHERE account_id = ?`,
		`UPDATE recurring_transfers SET creditor_id = NULL WHERE creditor_id = ?`,
		`UPDATE recurring_transfers SET debtor_id = NULL WHERE debtor_id = ?`,
		`DELETE FROM recurring_income_tags WHERE recurring_income_id IN (SELECT id FROM recurring_incomes WHERE account_id = ?)`,
		`DELETE FROM recurring_incomes WHERE account_id = ?`,
		`DELETE FROM accounts WHERE id = ?`,
	}
	for _, stmt := range stmts {
		args := []any{id}
		if n := countPlaceholders(stmt); n == 2 {
			args = append(args, id)
		}
		if _, err := q.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete account %d: %w", id, err)
		}
	}
	return nil
}

func countPlaceholders(stmt string) int {
	n := 0
	for _, r := range stmt {
		if r == '?' {
			n++
		}
	}
	return n
}
