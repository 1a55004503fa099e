package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccountValidate(t *testing.T) {
	valid := Account{
		Name:           "Checking",
		Type:           Cash,
		InitialBalance: decimal.NewFromInt(100),
		InitialDate:    date(2024, time.January, 1),
	}

	tests := []struct {
		name    string
		mutate  func(a Account) Account
		wantErr error
	}{
		{name: "valid", mutate: func(a Account) Account { return a }},
		{
			name:    "empty name",
			mutate:  func(a Account) Account { a.Name = "  "; return a },
			wantErr: ErrEmptyName,
		},
		{
			name:    "bad type",
			mutate:  func(a Account) Account { a.Type = "piggybank"; return a },
			wantErr: ErrInvalidAccountType,
		},
		{
			name:    "zero initial date",
			mutate:  func(a Account) Account { a.InitialDate = time.Time{}; return a },
			wantErr: ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransferValidate(t *testing.T) {
	valid := Transfer{
		CreditorID:   1,
		DebtorID:     2,
		Description:  "monthly savings",
		Amount:       decimal.NewFromInt(50),
		TransactedAt: date(2024, time.January, 5),
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transfer should validate: %v", err)
	}

	self := valid
	self.DebtorID = valid.CreditorID
	if err := self.Validate(); !errors.Is(err, ErrSelfTransfer) {
		t.Errorf("self transfer: got %v, want %v", err, ErrSelfTransfer)
	}

	missing := valid
	missing.DebtorID = 0
	if err := missing.Validate(); !errors.Is(err, ErrMissingAccount) {
		t.Errorf("missing debtor: got %v, want %v", err, ErrMissingAccount)
	}

	zero := valid
	zero.Amount = decimal.Zero
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: got %v, want %v", err, ErrInvalidAmount)
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	next := date(2024, time.February, 1)
	amount := decimal.NewFromInt(25)

	income := RecurringIncome{AccountID: 1, Description: "salary", Amount: amount, NextTransactionAt: next, Frequency: Monthly}
	if err := income.Validate(); err != nil {
		t.Errorf("valid recurring income: %v", err)
	}
	income.Frequency = "fortnightly"
	if err := income.Validate(); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("bad frequency: got %v, want %v", err, ErrInvalidFrequency)
	}

	// Null account is legal on expense templates: schedule-only tracking.
	expense := RecurringExpense{Description: "gym", Amount: amount, NextTransactionAt: next, Frequency: Weekly}
	if err := expense.Validate(); err != nil {
		t.Errorf("recurring expense without account should validate: %v", err)
	}
	if expense.Materializes() {
		t.Error("expense without account must not materialize")
	}

	acct := int64(3)
	transfer := RecurringTransfer{CreditorID: &acct, DebtorID: &acct, Description: "loop", Amount: amount, NextTransactionAt: next, Frequency: Daily}
	if err := transfer.Validate(); !errors.Is(err, ErrSelfTransfer) {
		t.Errorf("self recurring transfer: got %v, want %v", err, ErrSelfTransfer)
	}

	exhausted := int64(0)
	income2 := RecurringIncome{AccountID: 1, Description: "salary", Amount: amount, NextTransactionAt: next, Frequency: Monthly, RemainingRecurrences: &exhausted}
	if err := income2.Validate(); err == nil {
		t.Error("zero remaining recurrences should not validate")
	}
}
