package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "conti.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func seedUser(t *testing.T, q *Queries) int64 {
	t.Helper()
	userID, err := q.CreateUser(context.Background(), "tester", date(2024, time.January, 1))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return userID
}

func seedAccount(t *testing.T, q *Queries, userID int64, name string) *core.Account {
	t.Helper()
	a := &core.Account{
		UserID:         userID,
		Name:           name,
		Type:           core.Cash,
		InitialBalance: dec(100),
		InitialDate:    date(2024, time.January, 1),
		CurrentBalance: dec(100),
		CreatedAt:      date(2024, time.January, 1),
	}
	if err := q.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create account %q: %v", name, err)
	}
	return a
}

func TestAccountRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)

	rate := decimal.NewFromFloat(2.5)
	billing := 15
	a := &core.Account{
		UserID:         userID,
		Name:           "Carta",
		Type:           core.CreditCard,
		InitialBalance: dec(-200),
		InitialDate:    date(2024, time.February, 10),
		CurrentBalance: dec(-200),
		InterestRate:   &rate,
		BillingDay:     &billing,
		CreatedAt:      date(2024, time.February, 10),
	}
	if err := q.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("CreateAccount did not set the id")
	}

	got, err := q.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Name != "Carta" || got.Type != core.CreditCard {
		t.Errorf("got %q/%s, want Carta/credit_card", got.Name, got.Type)
	}
	if !got.InitialBalance.Equal(dec(-200)) || !got.CurrentBalance.Equal(dec(-200)) {
		t.Errorf("balances = %s/%s, want -200/-200", got.InitialBalance, got.CurrentBalance)
	}
	if !got.InitialDate.Equal(date(2024, time.February, 10)) {
		t.Errorf("initial date = %s", got.InitialDate)
	}
	if got.InterestRate == nil || !got.InterestRate.Equal(rate) {
		t.Errorf("interest rate = %v, want 2.5", got.InterestRate)
	}
	if got.BillingDay == nil || *got.BillingDay != 15 {
		t.Errorf("billing day = %v, want 15", got.BillingDay)
	}

	got.Name = "Carta nuova"
	got.InterestRate = nil
	if err := q.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("update account: %v", err)
	}
	again, err := q.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if again.Name != "Carta nuova" || again.InterestRate != nil {
		t.Errorf("update not persisted: %q %v", again.Name, again.InterestRate)
	}

	if err := q.UpdateAccountBalance(ctx, a.ID, dec(-50)); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	again, _ = q.GetAccount(ctx, a.ID)
	if !again.CurrentBalance.Equal(dec(-50)) {
		t.Errorf("current balance = %s, want -50", again.CurrentBalance)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.Queries().GetAccount(context.Background(), 9999)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want core.ErrNotFound", err)
	}
}

func TestDeltaQueries(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	checking := seedAccount(t, q, userID, "Conto corrente")
	savings := seedAccount(t, q, userID, "Risparmi")

	in := &core.Income{
		UserID: userID, AccountID: checking.ID,
		Description: "Stipendio", Amount: dec(100),
		TransactedAt: date(2024, time.February, 10), CreatedAt: date(2024, time.February, 10),
	}
	if err := q.CreateIncome(ctx, in); err != nil {
		t.Fatalf("create income: %v", err)
	}
	e := &core.Expense{
		UserID: userID, AccountID: checking.ID,
		Description: "Spesa", Amount: dec(30),
		TransactedAt: date(2024, time.February, 20), CreatedAt: date(2024, time.February, 20),
	}
	if err := q.CreateExpense(ctx, e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	tr := &core.Transfer{
		UserID: userID, CreditorID: savings.ID, DebtorID: checking.ID,
		Description: "Accantonamento", Amount: dec(50),
		TransactedAt: date(2024, time.March, 5), CreatedAt: date(2024, time.March, 5),
	}
	if err := q.CreateTransfer(ctx, tr); err != nil {
		t.Fatalf("create transfer: %v", err)
	}

	all, err := q.AllDeltas(ctx, checking.ID)
	if err != nil {
		t.Fatalf("all deltas: %v", err)
	}
	if got := core.SumDeltas(all); !got.Equal(dec(20)) {
		t.Errorf("checking net = %s, want 20 (100 - 30 - 50)", got)
	}

	feb, err := q.DeltasInRange(ctx, checking.ID, date(2024, time.February, 1), date(2024, time.March, 1))
	if err != nil {
		t.Fatalf("deltas in range: %v", err)
	}
	if got := core.SumDeltas(feb); !got.Equal(dec(70)) {
		t.Errorf("february net = %s, want 70", got)
	}
	if len(feb) != 2 {
		t.Errorf("february deltas = %d, want 2", len(feb))
	}

	other, err := q.AllDeltas(ctx, savings.ID)
	if err != nil {
		t.Fatalf("all deltas savings: %v", err)
	}
	if got := core.SumDeltas(other); !got.Equal(dec(50)) {
		t.Errorf("savings net = %s, want 50", got)
	}

	first, err := q.FirstTransactionDate(ctx, checking.ID)
	if err != nil {
		t.Fatalf("first transaction date: %v", err)
	}
	if first == nil || !first.Equal(date(2024, time.February, 10)) {
		t.Errorf("first transaction = %v, want 2024-02-10", first)
	}

	empty := seedAccount(t, q, userID, "Vuoto")
	first, err = q.FirstTransactionDate(ctx, empty.ID)
	if err != nil {
		t.Fatalf("first transaction date (empty): %v", err)
	}
	if first != nil {
		t.Errorf("first transaction for empty account = %v, want nil", first)
	}
}

func TestMovementRoundTrip(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	acct := seedAccount(t, q, userID, "Conto")

	counterparty := "Datore"
	in := &core.Income{
		UserID: userID, AccountID: acct.ID, Counterparty: &counterparty,
		Description: "Stipendio", Amount: decimal.RequireFromString("1234.56"),
		TransactedAt: date(2024, time.March, 27), CreatedAt: date(2024, time.March, 27),
	}
	if err := q.CreateIncome(ctx, in); err != nil {
		t.Fatalf("create income: %v", err)
	}

	got, err := q.GetIncome(ctx, in.ID)
	if err != nil {
		t.Fatalf("get income: %v", err)
	}
	if !got.Amount.Equal(in.Amount) || !got.TransactedAt.Equal(in.TransactedAt) {
		t.Errorf("round trip mismatch: %s at %s", got.Amount, got.TransactedAt)
	}
	if got.Counterparty == nil || *got.Counterparty != "Datore" {
		t.Errorf("counterparty = %v, want Datore", got.Counterparty)
	}

	got.Amount = dec(1000)
	if err := q.UpdateIncome(ctx, got); err != nil {
		t.Fatalf("update income: %v", err)
	}
	again, _ := q.GetIncome(ctx, in.ID)
	if !again.Amount.Equal(dec(1000)) {
		t.Errorf("amount after update = %s, want 1000", again.Amount)
	}

	if err := q.DeleteIncome(ctx, in.ID); err != nil {
		t.Fatalf("delete income: %v", err)
	}
	if _, err := q.GetIncome(ctx, in.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get after delete = %v, want core.ErrNotFound", err)
	}
}

func TestSnapshotUpsert(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	acct := seedAccount(t, q, userID, "Conto")

	janEnd := date(2024, time.January, 31)
	febEnd := date(2024, time.February, 29)

	if err := q.UpsertSnapshot(ctx, acct.ID, janEnd, dec(100)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Same key again overwrites rather than duplicating.
	if err := q.UpsertSnapshot(ctx, acct.ID, janEnd, dec(120)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := q.UpsertSnapshot(ctx, acct.ID, febEnd, dec(80)); err != nil {
		t.Fatalf("upsert feb: %v", err)
	}

	snap, err := q.GetSnapshot(ctx, acct.ID, janEnd)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !snap.Balance.Equal(dec(120)) {
		t.Errorf("jan balance = %s, want 120", snap.Balance)
	}

	latest, err := q.LatestSnapshot(ctx, acct.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if !latest.RecordedUntil.Equal(febEnd) {
		t.Errorf("latest = %s, want feb end", latest.RecordedUntil)
	}

	list, err := q.ListSnapshots(ctx, acct.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(list))
	}
	if !list[0].RecordedUntil.Equal(janEnd) || !list[1].RecordedUntil.Equal(febEnd) {
		t.Errorf("snapshots not ordered oldest first: %s, %s",
			list[0].RecordedUntil, list[1].RecordedUntil)
	}

	if _, err := q.GetSnapshot(ctx, acct.ID, date(2024, time.March, 31)); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing snapshot err = %v, want core.ErrNotFound", err)
	}
}

func TestRecurringDueAndAdvance(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	acct := seedAccount(t, q, userID, "Conto")
	now := date(2024, time.June, 15)

	three := int64(3)
	due := &core.RecurringIncome{
		UserID: userID, AccountID: acct.ID,
		Description: "Affitto incassato", Amount: dec(700),
		NextTransactionAt: date(2024, time.June, 1), Frequency: core.Monthly,
		RemainingRecurrences: &three,
	}
	if err := q.CreateRecurringIncome(ctx, due); err != nil {
		t.Fatalf("create due template: %v", err)
	}
	later := &core.RecurringIncome{
		UserID: userID, AccountID: acct.ID,
		Description: "Bonus", Amount: dec(50),
		NextTransactionAt: date(2024, time.July, 1), Frequency: core.Monthly,
	}
	if err := q.CreateRecurringIncome(ctx, later); err != nil {
		t.Fatalf("create later template: %v", err)
	}

	dueNow, err := q.DueRecurringIncomes(ctx, now)
	if err != nil {
		t.Fatalf("due recurring incomes: %v", err)
	}
	if len(dueNow) != 1 || dueNow[0].ID != due.ID {
		t.Fatalf("due = %v, want only the june template", dueNow)
	}
	if dueNow[0].RemainingRecurrences == nil || *dueNow[0].RemainingRecurrences != 3 {
		t.Errorf("remaining = %v, want 3", dueNow[0].RemainingRecurrences)
	}

	two := int64(2)
	if err := q.AdvanceRecurringIncome(ctx, due.ID, date(2024, time.July, 1), &two); err != nil {
		t.Fatalf("advance: %v", err)
	}
	dueNow, err = q.DueRecurringIncomes(ctx, now)
	if err != nil {
		t.Fatalf("due after advance: %v", err)
	}
	if len(dueNow) != 0 {
		t.Errorf("due after advance = %d templates, want 0", len(dueNow))
	}

	dueJuly, err := q.DueRecurringIncomes(ctx, date(2024, time.July, 2))
	if err != nil {
		t.Fatalf("due in july: %v", err)
	}
	if len(dueJuly) != 2 {
		t.Fatalf("due in july = %d templates, want 2", len(dueJuly))
	}

	if err := q.DeleteRecurringIncome(ctx, due.ID); err != nil {
		t.Fatalf("delete template: %v", err)
	}
	dueJuly, _ = q.DueRecurringIncomes(ctx, date(2024, time.July, 2))
	if len(dueJuly) != 1 {
		t.Errorf("due after delete = %d templates, want 1", len(dueJuly))
	}
}

func TestTagLinks(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	acct := seedAccount(t, q, userID, "Conto")

	food, err := q.CreateTag(ctx, userID, "cibo")
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	same, err := q.CreateTag(ctx, userID, "cibo")
	if err != nil {
		t.Fatalf("create duplicate tag: %v", err)
	}
	if same != food {
		t.Errorf("duplicate tag id = %d, want %d", same, food)
	}
	home, err := q.CreateTag(ctx, userID, "casa")
	if err != nil {
		t.Fatalf("create second tag: %v", err)
	}

	e := &core.Expense{
		UserID: userID, AccountID: acct.ID,
		Description: "Cena", Amount: dec(40),
		TransactedAt: date(2024, time.April, 2), CreatedAt: date(2024, time.April, 2),
	}
	if err := q.CreateExpense(ctx, e); err != nil {
		t.Fatalf("create expense: %v", err)
	}
	if err := q.LinkExpenseTags(ctx, e.ID, []int64{food}); err != nil {
		t.Fatalf("link tags: %v", err)
	}

	ids, err := q.ExpenseTagIDs(ctx, e.ID)
	if err != nil {
		t.Fatalf("expense tag ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != food {
		t.Errorf("tag ids = %v, want [%d]", ids, food)
	}

	if err := q.ReplaceExpenseTags(ctx, e.ID, []int64{home}); err != nil {
		t.Fatalf("replace tags: %v", err)
	}
	ids, _ = q.ExpenseTagIDs(ctx, e.ID)
	if len(ids) != 1 || ids[0] != home {
		t.Errorf("tag ids after replace = %v, want [%d]", ids, home)
	}
}

func TestDeleteAccountRemovesDependents(t *testing.T) {
	repo := setupRepo(t)
	q := repo.Queries()
	ctx := context.Background()
	userID := seedUser(t, q)
	acct := seedAccount(t, q, userID, "Conto")
	other := seedAccount(t, q, userID, "Altro")

	in := &core.Income{
		UserID: userID, AccountID: acct.ID,
		Description: "Stipendio", Amount: dec(100),
		TransactedAt: date(2024, time.February, 1), CreatedAt: date(2024, time.February, 1),
	}
	if err := q.CreateIncome(ctx, in); err != nil {
		t.Fatalf("create income: %v", err)
	}
	tr := &core.Transfer{
		UserID: userID, CreditorID: other.ID, DebtorID: acct.ID,
		Description: "Giro", Amount: dec(10),
		TransactedAt: date(2024, time.February, 2), CreatedAt: date(2024, time.February, 2),
	}
	if err := q.CreateTransfer(ctx, tr); err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	if err := q.UpsertSnapshot(ctx, acct.ID, date(2024, time.February, 29), dec(90)); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}

	if err := q.DeleteAccount(ctx, acct.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := q.GetAccount(ctx, acct.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("account still present: %v", err)
	}
	if _, err := q.GetIncome(ctx, in.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("income survived account deletion: %v", err)
	}
	if _, err := q.GetTransfer(ctx, tr.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("transfer survived account deletion: %v", err)
	}
	if _, err := q.LatestSnapshot(ctx, acct.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("snapshot survived account deletion: %v", err)
	}
}
