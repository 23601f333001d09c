package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType is the closed set of economic events the classifier produces.
type EventType string

const (
	EventIncome      EventType = "Income"
	EventExpense     EventType = "Expense"
	EventTrade       EventType = "Trade"
	EventDebt        EventType = "Debt"
	EventGuardChange EventType = "GuardChange"
)

// Valid reports whether t is a member of the closed event type set.
func (t EventType) Valid() bool {
	switch t {
	case EventIncome, EventExpense, EventTrade, EventDebt, EventGuardChange:
		return true
	}
	return false
}

// Event is one economic event derived from the transfers of a single
// transaction. Chunk references are arena indices.
type Event struct {
	Index   int             `json:"index"`
	Date    time.Time       `json:"date"`
	Type    EventType       `json:"type"`
	Asset   string          `json:"asset,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
	Account string          `json:"account"`
	TxID    string          `json:"txId"`

	// Inputs are chunks received by the event, Outputs chunks given up.
	Inputs  []ChunkIndex `json:"inputs,omitempty"`
	Outputs []ChunkIndex `json:"outputs,omitempty"`

	// FromGuard and ToGuard are set on guard change events only.
	FromGuard string `json:"fromGuard,omitempty"`
	ToGuard   string `json:"toGuard,omitempty"`
}
