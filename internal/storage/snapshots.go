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

// UpsertSnapshot inserts or overwrites the (account, recorded_until) ledger
// row. Calling it twice with the same arguments leaves one row holding the
// latest value.
func (q *Queries) UpsertSnapshot(ctx context.Context, accountID int64, recordedUntil time.Time, balance decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO balances (account_id, recorded_until, balance) VALUES (?, ?, ?)
		 ON CONFLICT(account_id, recorded_until) DO UPDATE SET balance = excluded.balance`,
		accountID, fmtDate(recordedUntil), balance.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(row rowScanner) (*core.BalanceSnapshot, error) {
	var (
		s                      core.BalanceSnapshot
		recordedStr, balanceStr string
	)
	err := row.Scan(&s.ID, &s.AccountID, &recordedStr, &balanceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	if s.RecordedUntil, err = parseDate(recordedStr); err != nil {
		return nil, fmt.Errorf("parse recorded_until: %w", err)
	}
	if s.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("parse snapshot balance: %w", err)
	}
	return &s, nil
}

func (q *Queries) GetSnapshot(ctx context.Context, accountID int64, recordedUntil time.Time) (*core.BalanceSnapshot, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, account_id, recorded_until, balance FROM balances
		 WHERE account_id = ? AND recorded_until = ?`,
		accountID, fmtDate(recordedUntil),
	)
	return scanSnapshot(row)
}

func (q *Queries) LatestSnapshot(ctx context.Context, accountID int64) (*core.BalanceSnapshot, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, account_id, recorded_until, balance FROM balances
		 WHERE account_id = ? ORDER BY recorded_until DESC LIMIT 1`,
		accountID,
	)
	return scanSnapshot(row)
}

// ListSnapshots returns the account's monthly ledger ordered oldest first.
func (q *Queries) ListSnapshots(ctx context.Context, accountID int64) ([]core.BalanceSnapshot, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, account_id, recorded_until, balance FROM balances
		 WHERE account_id = ? ORDER BY recorded_until`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []core.BalanceSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}
