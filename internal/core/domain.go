package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Cash       AccountType = "cash"
	Savings    AccountType = "savings"
	CreditCard AccountType = "credit_card"
	Wallet     AccountType = "wallet"
	Investment AccountType = "investment"
	Loan       AccountType = "loan"
	Other      AccountType = "other"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Biweekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

type (
	AccountType string
	Frequency   string

	// Account carries the cached current balance alongside the opening
	// position. CurrentBalance is derived state: it must always equal
	// InitialBalance plus the net effect of every transaction, and every
	// mutation path goes through the balance engine to keep it that way.
	Account struct {
		ID             int64
		UserID         int64
		Name           string
		Type           AccountType
		InitialBalance decimal.Decimal
		InitialDate    time.Time
		CurrentBalance decimal.Decimal
		InterestRate   *decimal.Decimal
		BillingDay     *int
		CreatedAt      time.Time
	}

	// BalanceSnapshot is one row of the historical ledger: the cumulative
	// balance of an account as of a month-end date. One row per account per
	// month-end, enforced by a unique constraint.
	BalanceSnapshot struct {
		ID            int64
		AccountID     int64
		RecordedUntil time.Time
		Balance       decimal.Decimal
	}

	Income struct {
		ID           int64
		UserID       int64
		AccountID    int64
		Counterparty *string
		Description  string
		Amount       decimal.Decimal
		TransactedAt time.Time
		CreatedAt    time.Time
	}

	Expense struct {
		ID           int64
		UserID       int64
		AccountID    int64
		Counterparty *string
		Description  string
		Amount       decimal.Decimal
		TransactedAt time.Time
		CreatedAt    time.Time
	}

	// Transfer moves an amount from the debtor account to the creditor
	// account: a positive delta on the creditor, a negative one on the debtor.
	Transfer struct {
		ID           int64
		UserID       int64
		CreditorID   int64
		DebtorID     int64
		Description  string
		Amount       decimal.Decimal
		TransactedAt time.Time
		CreatedAt    time.Time
	}

	// RecurringIncome is a template that materializes an Income each time it
	// comes due. A nil RemainingRecurrences means unlimited.
	RecurringIncome struct {
		ID                   int64
		UserID               int64
		AccountID            int64
		Description          string
		Amount               decimal.Decimal
		NextTransactionAt    time.Time
		Frequency            Frequency
		RemainingRecurrences *int64
	}

	// RecurringExpense may have a nil AccountID: the schedule still advances
	// but no transaction is materialized.
	RecurringExpense struct {
		ID                   int64
		UserID               int64
		AccountID            *int64
		Description          string
		Amount               decimal.Decimal
		NextTransactionAt    time.Time
		Frequency            Frequency
		RemainingRecurrences *int64
	}

	// RecurringTransfer materializes only when both account references are
	// set; otherwise the schedule advances without a transaction.
	RecurringTransfer struct {
		ID                   int64
		UserID               int64
		CreditorID           *int64
		DebtorID             *int64
		Description          string
		Amount               decimal.Decimal
		NextTransactionAt    time.Time
		Frequency            Frequency
		RemainingRecurrences *int64
	}

	Tag struct {
		ID     int64
		UserID int64
		Name   string
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidDate        = errors.New("invalid date")
	ErrSelfTransfer       = errors.New("creditor and debtor must differ")
	ErrMissingAccount     = errors.New("missing account reference")
)

// ValidAccountType reports whether t is one of the supported account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case Cash, Savings, CreditCard, Wallet, Investment, Loan, Other:
		return true
	}
	return false
}

// ValidFrequency reports whether f is one of the supported schedule frequencies.
func ValidFrequency(f Frequency) bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !ValidAccountType(a.Type) {
		return ErrInvalidAccountType
	}
	if a.InitialDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func validateTransaction(accountID int64, description string, amount decimal.Decimal, transactedAt time.Time) error {
	if accountID <= 0 {
		return ErrMissingAccount
	}
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if len(description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if transactedAt.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (i Income) Validate() error {
	return validateTransaction(i.AccountID, i.Description, i.Amount, i.TransactedAt)
}

func (e Expense) Validate() error {
	return validateTransaction(e.AccountID, e.Description, e.Amount, e.TransactedAt)
}

func (t Transfer) Validate() error {
	if err := validateTransaction(t.CreditorID, t.Description, t.Amount, t.TransactedAt); err != nil {
		return err
	}
	if t.DebtorID <= 0 {
		return ErrMissingAccount
	}
	if t.CreditorID == t.DebtorID {
		return ErrSelfTransfer
	}
	return nil
}

func validateTemplate(description string, amount decimal.Decimal, next time.Time, freq Frequency, remaining *int64) error {
	if strings.TrimSpace(description) == "" {
		return ErrEmptyDescription
	}
	if len(description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if next.IsZero() {
		return ErrInvalidDate
	}
	if !ValidFrequency(freq) {
		return ErrInvalidFrequency
	}
	if remaining != nil && *remaining <= 0 {
		return errors.New("remaining recurrences must be positive or unlimited")
	}
	return nil
}

func (r RecurringIncome) Validate() error {
	if r.AccountID <= 0 {
		return ErrMissingAccount
	}
	return validateTemplate(r.Description, r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences)
}

func (r RecurringExpense) Validate() error {
	return validateTemplate(r.Description, r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences)
}

func (r RecurringTransfer) Validate() error {
	if r.CreditorID != nil && r.DebtorID != nil && *r.CreditorID == *r.DebtorID {
		return ErrSelfTransfer
	}
	return validateTemplate(r.Description, r.Amount, r.NextTransactionAt, r.Frequency, r.RemainingRecurrences)
}

// Materializes reports whether the template has the account references it
// needs to spawn a concrete transaction.
func (r RecurringExpense) Materializes() bool { return r.AccountID != nil }

func (r RecurringTransfer) Materializes() bool { return r.CreditorID != nil && r.DebtorID != nil }
