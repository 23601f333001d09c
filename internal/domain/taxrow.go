package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Term distinguishes long-term from short-term capital changes. The holding
// threshold is jurisdiction configuration, not part of the type.
type Term string

const (
	TermShort Term = "Short"
	TermLong  Term = "Long"
)

// RowAction says which economic event produced a tax row.
type RowAction string

const (
	RowTrade  RowAction = "Trade"
	RowIncome RowAction = "Income"
)

// TaxRow is one line of the capital-gains report: a disposal with its
// receive-side cost basis, or an income receipt valued at receive time.
type TaxRow struct {
	Date          time.Time       `json:"date"`
	Action        RowAction       `json:"action"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	Value         decimal.Decimal `json:"value"`
	ReceiveDate   time.Time       `json:"receiveDate"`
	ReceivePrice  decimal.Decimal `json:"receivePrice"`
	CapitalChange decimal.Decimal `json:"capitalChange"`
	Term          Term            `json:"term"`
	Chunk         ChunkIndex      `json:"chunk"`
}
