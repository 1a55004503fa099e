package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DeltaIncome      DeltaKind = "income"
	DeltaExpense     DeltaKind = "expense"
	DeltaTransferIn  DeltaKind = "transfer_in"
	DeltaTransferOut DeltaKind = "transfer_out"
)

type DeltaKind string

// Delta is the signed effect a single transaction has on one account's
// balance. Incomes and transfers-in add, expenses and transfers-out subtract.
// All four kinds feed the same summation in the balance engine; there is no
// per-kind arithmetic anywhere else.
type Delta struct {
	Kind         DeltaKind
	Amount       decimal.Decimal // positive magnitude
	TransactedAt time.Time
}

// Signed returns the delta's contribution to the account balance.
func (d Delta) Signed() decimal.Decimal {
	switch d.Kind {
	case DeltaExpense, DeltaTransferOut:
		return d.Amount.Neg()
	default:
		return d.Amount
	}
}

// SumDeltas folds a slice of deltas into one signed amount.
func SumDeltas(deltas []Delta) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deltas {
		total = total.Add(d.Signed())
	}
	return total
}
