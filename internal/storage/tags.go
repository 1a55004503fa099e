package storage

import (
	"context"
	"fmt"
)

// CreateTag inserts the tag or returns the existing row's id when the user
// already has a tag with that name.
func (q *Queries) CreateTag(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO tags (user_id, name) VALUES (?, ?)
		 ON CONFLICT(user_id, name) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		userID, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tag: %w", err)
	}
	return id, nil
}

func (q *Queries) linkTags(ctx context.Context, table, column string, ownerID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		_, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (`+column+`, tag_id) VALUES (?, ?)`,
			ownerID, tagID,
		)
		if err != nil {
			return fmt.Errorf("link tag %d in %s: %w", tagID, table, err)
		}
	}
	return nil
}

func (q *Queries) replaceTags(ctx context.Context, table, column string, ownerID int64, tagIDs []int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE `+column+` = ?`, ownerID,
	)
	if err != nil {
		return fmt.Errorf("clear tags in %s: %w", table, err)
	}
	return q.linkTags(ctx, table, column, ownerID, tagIDs)
}

func (q *Queries) ReplaceIncomeTags(ctx context.Context, incomeID int64, tagIDs []int64) error {
	return q.replaceTags(ctx, "income_tags", "income_id", incomeID, tagIDs)
}

func (q *Queries) ReplaceExpenseTags(ctx context.Context, expenseID int64, tagIDs []int64) error {
	return q.replaceTags(ctx, "expense_tags", "expense_id", expenseID, tagIDs)
}

func (q *Queries) ReplaceTransferTags(ctx context.Context, transferID int64, tagIDs []int64) error {
	return q.replaceTags(ctx, "transfer_tags", "transfer_id", transferID, tagIDs)
}

func (q *Queries) LinkIncomeTags(ctx context.Context, incomeID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "income_tags", "income_id", incomeID, tagIDs)
}

func (q *Queries) LinkExpenseTags(ctx context.Context, expenseID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "expense_tags", "expense_id", expenseID, tagIDs)
}

func (q *Queries) LinkTransferTags(ctx context.Context, transferID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "transfer_tags", "transfer_id", transferID, tagIDs)
}

func (q *Queries) LinkRecurringIncomeTags(ctx context.Context, recurringID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "recurring_income_tags", "recurring_income_id", recurringID, tagIDs)
}

func (q *Queries) LinkRecurringExpenseTags(ctx context.Context, recurringID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "recurring_expense_tags", "recurring_expense_id", recurringID, tagIDs)
}

func (q *Queries) LinkRecurringTransferTags(ctx context.Context, recurringID int64, tagIDs []int64) error {
	return q.linkTags(ctx, "recurring_transfer_tags", "recurring_transfer_id", recurringID, tagIDs)
}

func (q *Queries) tagIDs(ctx context.Context, table, column string, ownerID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT tag_id FROM `+table+` WHERE `+column+` = ? ORDER BY tag_id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("tags from %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tag id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *Queries) RecurringIncomeTagIDs(ctx context.Context, recurringID int64) ([]int64, error) {
	return q.tagIDs(ctx, "recurring_income_tags", "recurring_income_id", recurringID)
}

func (q *Queries) RecurringExpenseTagIDs(ctx context.Context, recurringID int64) ([]int64, error) {
	return q.tagIDs(ctx, "recurring_expense_tags", "recurring_expense_id", recurringID)
}

func (q *Queries) RecurringTransferTagIDs(ctx context.Context, recurringID int64) ([]int64, error) {
	return q.tagIDs(ctx, "recurring_transfer_tags", "recurring_transfer_id", recurringID)
}

func (q *Queries) IncomeTagIDs(ctx context.Context, incomeID int64) ([]int64, error) {
	return q.tagIDs(ctx, "income_tags", "income_id", incomeID)
}

func (q *Queries) ExpenseTagIDs(ctx context.Context, expenseID int64) ([]int64, error) {
	return q.tagIDs(ctx, "expense_tags", "expense_id", expenseID)
}

func (q *Queries) TransferTagIDs(ctx context.Context, transferID int64) ([]int64, error) {
	return q.tagIDs(ctx, "transfer_tags", "transfer_id", transferID)
}
