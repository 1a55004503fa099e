// Package core holds the domain model of the ledger: accounts, transactions,
// recurring templates, balance snapshots, and the money/date arithmetic the
// balance engine builds on.
//
// All monetary values are decimal.Decimal. Amounts entering the system through
// forms arrive as strings and go through ParseAmount, which enforces the
// positive-amount rule shared by incomes, expenses, and transfers.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotFound      = errors.New("not found")
)

// ParseAmount parses a user-supplied monetary amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// to two decimal places half-up. The result must be strictly positive; sign
// is carried by the transaction kind, never by the amount itself.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidateAmount enforces the positive-amount rule on already-parsed values.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
