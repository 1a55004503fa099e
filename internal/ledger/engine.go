// Package ledger implements the balance engine: the single place where
// account balances and monthly snapshots are computed, stored, and repaired.
//
// The cached current_balance on an account and the per-month-end Balance rows
// are both derived values. Every transaction mutation funnels through
// ApplyTransactionChange; Backfill rebuilds everything from scratch; Reconcile
// corrects cache drift from any path that bypassed the mutators. All three are
// idempotent, which is the system's recovery strategy: rerunning them is
// always safe.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

// Store is the slice of the storage layer the engine needs. It is satisfied
// by *storage.Queries, so the engine runs against whatever transaction its
// caller opened.
type Store interface {
	GetAccount(ctx context.Context, id int64) (*core.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	DeltasInRange(ctx context.Context, accountID int64, from, to time.Time) ([]core.Delta, error)
	AllDeltas(ctx context.Context, accountID int64) ([]core.Delta, error)
	FirstTransactionDate(ctx context.Context, accountID int64) (*time.Time, error)
	GetSnapshot(ctx context.Context, accountID int64, recordedUntil time.Time) (*core.BalanceSnapshot, error)
	LatestSnapshot(ctx context.Context, accountID int64) (*core.BalanceSnapshot, error)
	UpsertSnapshot(ctx context.Context, accountID int64, recordedUntil time.Time, balance decimal.Decimal) error
}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// MonthlyDelta returns the signed sum of every income, expense, and transfer
// effect on the account within the calendar month containing the given date.
func (e *Engine) MonthlyDelta(ctx context.Context, accountID int64, month time.Time) (decimal.Decimal, error) {
	from := core.MonthStart(month)
	to := from.AddDate(0, 1, 0)
	deltas, err := e.store.DeltasInRange(ctx, accountID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monthly delta: %w", err)
	}
	return core.SumDeltas(deltas), nil
}

// FirstTransactionDate returns the earliest transacted_at across the
// account's incomes, expenses, and transfers, or nil when it has none.
func (e *Engine) FirstTransactionDate(ctx context.Context, accountID int64) (*time.Time, error) {
	return e.store.FirstTransactionDate(ctx, accountID)
}

// firstActivityMonthEnd is the month-end of min(initial_date, earliest
// transaction): the first month the snapshot chain must cover.
func (e *Engine) firstActivityMonthEnd(ctx context.Context, acct *core.Account) (time.Time, error) {
	start := acct.InitialDate
	first, err := e.store.FirstTransactionDate(ctx, acct.ID)
	if err != nil {
		return time.Time{}, err
	}
	if first != nil && first.Before(start) {
		start = *first
	}
	return core.MonthEnd(start), nil
}

// rebuildChain recomputes and overwrites every snapshot from startEnd through
// lastEnd, accumulating from base. Returns the number of months written.
func (e *Engine) rebuildChain(ctx context.Context, accountID int64, startEnd, lastEnd time.Time, base decimal.Decimal) (int, error) {
	running := base
	months := 0
	for cur := startEnd; !cur.After(lastEnd); cur = core.NextMonthEnd(cur) {
		monthDelta, err := e.MonthlyDelta(ctx, accountID, cur)
		if err != nil {
			return months, err
		}
		running = running.Add(monthDelta)
		if err := e.store.UpsertSnapshot(ctx, accountID, cur, running); err != nil {
			return months, err
		}
		months++
	}
	return months, nil
}

// ApplyTransactionChange records the effect of a created, amended, or removed
// transaction: a signed delta at a point in time. A change to an old month
// shifts every later month's cumulative balance by the same constant, so the
// engine recomputes each snapshot from the affected month through the last
// fully elapsed month and shifts current_balance by the delta.
//
// If no snapshot exists for the month before the affected one (first ever
// transaction, or a transaction predating the chain), the whole chain is
// rebuilt from the account's first-activity month instead.
func (e *Engine) ApplyTransactionChange(ctx context.Context, accountID int64, affectedAt time.Time, delta decimal.Decimal, now time.Time) error {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("apply change: %w", err)
	}

	lastEnd := core.LastElapsedMonthEnd(now)
	affectedEnd := core.MonthEnd(affectedAt)
	prevEnd := core.MonthEnd(core.MonthStart(affectedAt).AddDate(0, 0, -1))

	var (
		base     decimal.Decimal
		startEnd time.Time
	)
	prev, err := e.store.GetSnapshot(ctx, accountID, prevEnd)
	switch {
	case err == nil:
		base = prev.Balance
		startEnd = affectedEnd
	case errors.Is(err, core.ErrNotFound):
		// No chain to extend: rebuild from the first activity month.
		startEnd, err = e.firstActivityMonthEnd(ctx, acct)
		if err != nil {
			return fmt.Errorf("apply change: %w", err)
		}
		base = acct.InitialBalance
	default:
		return fmt.Errorf("apply change: %w", err)
	}

	if _, err := e.rebuildChain(ctx, accountID, startEnd, lastEnd, base); err != nil {
		return fmt.Errorf("apply change: %w", err)
	}

	if err := e.store.UpdateAccountBalance(ctx, accountID, acct.CurrentBalance.Add(delta)); err != nil {
		return fmt.Errorf("apply change: %w", err)
	}
	return nil
}

// Backfill recomputes the account's entire snapshot chain from scratch and
// reseeds current_balance from the full transaction history. Overwrite
// semantics make it safe to run any number of times. Returns the number of
// months processed.
func (e *Engine) Backfill(ctx context.Context, accountID int64, now time.Time) (int, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("backfill: %w", err)
	}

	startEnd, err := e.firstActivityMonthEnd(ctx, acct)
	if err != nil {
		return 0, fmt.Errorf("backfill: %w", err)
	}
	lastEnd := core.LastElapsedMonthEnd(now)

	months, err := e.rebuildChain(ctx, accountID, startEnd, lastEnd, acct.InitialBalance)
	if err != nil {
		return months, fmt.Errorf("backfill: %w", err)
	}

	deltas, err := e.store.AllDeltas(ctx, accountID)
	if err != nil {
		return months, fmt.Errorf("backfill: %w", err)
	}
	current := acct.InitialBalance.Add(core.SumDeltas(deltas))
	if err := e.store.UpdateAccountBalance(ctx, accountID, current); err != nil {
		return months, fmt.Errorf("backfill: %w", err)
	}

	slog.DebugContext(ctx, "Backfill complete",
		"account_id", accountID,
		"months", months,
		"current_balance", current.String())
	return months, nil
}

// RecordElapsedMonth extends the snapshot chain through the most recent fully
// elapsed month. Invoked by the monthly job; idempotent because a chain that
// already reaches the last elapsed month is left untouched.
func (e *Engine) RecordElapsedMonth(ctx context.Context, accountID int64, now time.Time) (int, error) {
	lastEnd := core.LastElapsedMonthEnd(now)

	latest, err := e.store.LatestSnapshot(ctx, accountID)
	if errors.Is(err, core.ErrNotFound) {
		return e.Backfill(ctx, accountID, now)
	}
	if err != nil {
		return 0, fmt.Errorf("record elapsed month: %w", err)
	}
	if !latest.RecordedUntil.Before(lastEnd) {
		return 0, nil
	}

	months, err := e.rebuildChain(ctx, accountID, core.NextMonthEnd(latest.RecordedUntil), lastEnd, latest.Balance)
	if err != nil {
		return months, fmt.Errorf("record elapsed month: %w", err)
	}
	return months, nil
}

// Reconcile recomputes current_balance from the full transaction history and
// silently overwrites any drift. The cache is derived state, never a source
// of truth, so a mismatch is corrected rather than treated as fatal. Returns
// the correction applied (zero when the cache was already right).
func (e *Engine) Reconcile(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile: %w", err)
	}

	deltas, err := e.store.AllDeltas(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile: %w", err)
	}
	expected := acct.InitialBalance.Add(core.SumDeltas(deltas))
	drift := expected.Sub(acct.CurrentBalance)
	if drift.IsZero() {
		return decimal.Zero, nil
	}

	if err := e.store.UpdateAccountBalance(ctx, accountID, expected); err != nil {
		return decimal.Zero, fmt.Errorf("reconcile: %w", err)
	}
	slog.WarnContext(ctx, "Corrected balance drift",
		"account_id", accountID,
		"cached", acct.CurrentBalance.String(),
		"recomputed", expected.String(),
		"drift", drift.String())
	return drift, nil
}
