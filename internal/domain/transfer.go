package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferCategory tells the ledger how a single transfer moves value
// relative to the accounts we track. The set is closed: the ledger and the
// classifier switch over it exhaustively and an unknown category is kept as
// CategoryUnknown so bad input never disappears silently.
type TransferCategory string

const (
	// CategoryInternal moves value between two of our own accounts.
	CategoryInternal TransferCategory = "Internal"
	// CategoryDeposit moves value from our wallet into an exchange or app.
	CategoryDeposit TransferCategory = "Deposit"
	// CategoryWithdraw moves value from an exchange or app back to our wallet.
	CategoryWithdraw TransferCategory = "Withdraw"
	// CategoryIncome receives value from the outside world.
	CategoryIncome TransferCategory = "Income"
	// CategoryExpense sends value to the outside world.
	CategoryExpense TransferCategory = "Expense"
	// CategoryFee pays a network or exchange fee.
	CategoryFee TransferCategory = "Fee"
	// CategorySwapIn receives one side of a trade.
	CategorySwapIn TransferCategory = "SwapIn"
	// CategorySwapOut gives away the other side of a trade.
	CategorySwapOut TransferCategory = "SwapOut"
	// CategoryBorrow receives borrowed value.
	CategoryBorrow TransferCategory = "Borrow"
	// CategoryRepay returns borrowed value.
	CategoryRepay TransferCategory = "Repay"
	// CategoryUnknown marks a transfer the upstream source could not classify.
	CategoryUnknown TransferCategory = "Unknown"
)

// Valid reports whether c is a member of the closed category set.
func (c TransferCategory) Valid() bool {
	switch c {
	case CategoryInternal, CategoryDeposit, CategoryWithdraw,
		CategoryIncome, CategoryExpense, CategoryFee,
		CategorySwapIn, CategorySwapOut,
		CategoryBorrow, CategoryRepay, CategoryUnknown:
		return true
	}
	return false
}

// Inbound reports whether the category creates new value in our accounts.
func (c TransferCategory) Inbound() bool {
	switch c {
	case CategoryIncome, CategorySwapIn, CategoryBorrow:
		return true
	}
	return false
}

// Outbound reports whether the category disposes value out of our accounts.
func (c TransferCategory) Outbound() bool {
	switch c {
	case CategoryExpense, CategoryFee, CategorySwapOut, CategoryRepay:
		return true
	}
	return false
}

// Move reports whether the category shifts value between our own accounts
// without a disposal.
func (c TransferCategory) Move() bool {
	switch c {
	case CategoryInternal, CategoryDeposit, CategoryWithdraw:
		return true
	}
	return false
}

// Transfer is one categorized movement of value inside a transaction.
// Amounts are arbitrary precision decimals, never floats.
type Transfer struct {
	From     string           `json:"from"`
	To       string           `json:"to"`
	Asset    string           `json:"asset"`
	Amount   decimal.Decimal  `json:"amount"`
	Category TransferCategory `json:"category"`
}

// Transaction is an ordered group of transfers that settled atomically.
// Transaction order across the input sequence and transfer order within the
// transaction are both part of the ledger contract.
type Transaction struct {
	ID        string     `json:"id"`
	Date      time.Time  `json:"date"`
	Index     int        `json:"index"`
	Transfers []Transfer `json:"transfers"`
	Source    string     `json:"source,omitempty"`
}

func (t Transaction) String() string {
	return fmt.Sprintf("tx %s at %s (%d transfers)", t.ID, t.Date.Format(time.RFC3339), len(t.Transfers))
}
