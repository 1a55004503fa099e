package amqp

import (
	"encoding/json"
	"time"
)

// Reasons an account's balance was touched. Carried on every event so the
// worker can log what kind of mutation triggered the reconcile.
const (
	ReasonIncome    = "income"
	ReasonExpense   = "expense"
	ReasonTransfer  = "transfer"
	ReasonRecurring = "recurring"
	ReasonBackfill  = "backfill"
)

// BalanceEvent is a lightweight notification that an account's balance
// changed. It carries only the account ID and the reason; the worker reads
// the current state from the database, so a stale or duplicated event is
// harmless.
type BalanceEvent struct {
	AccountID int64     `json:"account_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBalanceEvent(accountID int64, reason string) *BalanceEvent {
	return &BalanceEvent{
		AccountID: accountID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BalanceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BalanceEventFromJSON(data []byte) (*BalanceEvent, error) {
	var msg BalanceEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
