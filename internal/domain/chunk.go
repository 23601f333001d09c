package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChunkIndex is the stable identity of a chunk inside the ledger arena.
// History and event references use indices instead of pointers so the chunk
// set stays safe for concurrent read-only traversal once the fold is done.
type ChunkIndex int

// HistoryEntry records one hop of a chunk between accounts.
type HistoryEntry struct {
	Date time.Time `json:"date"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

// Chunk is a provenance-tracked quantity of one asset. Its amount never
// changes after creation; a partial disposal supersedes the chunk with two
// children that sum to the same amount.
type Chunk struct {
	Index  ChunkIndex      `json:"index"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`

	// History is append-only and sorted non-decreasing by date. The first
	// entry's To is the original receiving account.
	History []HistoryEntry `json:"history"`

	// DisposeDate is set exactly once, when the chunk leaves our accounts.
	DisposeDate *time.Time `json:"disposeDate,omitempty"`

	// Borrowed marks value received through a Borrow transfer.
	Borrowed bool `json:"borrowed,omitempty"`

	// SplitInto lists the children that superseded this chunk after a
	// partial consumption. A superseded chunk is retained for audit but no
	// longer counts toward balances or tax rows.
	SplitInto []ChunkIndex `json:"splitInto,omitempty"`
}

// ReceiveDate is the date the chunk first entered our accounts.
func (c *Chunk) ReceiveDate() time.Time {
	if len(c.History) == 0 {
		return time.Time{}
	}
	return c.History[0].Date
}

// Account is the current holder: the destination of the last hop while the
// chunk is held, or the account that gave it up once disposed.
func (c *Chunk) Account() string {
	if len(c.History) == 0 {
		return ""
	}
	last := c.History[len(c.History)-1]
	if c.Disposed() {
		return last.From
	}
	return last.To
}

// Disposed reports whether the chunk has left our accounts.
func (c *Chunk) Disposed() bool {
	return c.DisposeDate != nil
}

// Superseded reports whether the chunk was replaced by split children.
func (c *Chunk) Superseded() bool {
	return len(c.SplitInto) > 0
}

// Held reports whether the chunk still counts toward a balance.
func (c *Chunk) Held() bool {
	return !c.Disposed() && !c.Superseded()
}

// LedgerState is the serializable output of a finished fold: every chunk
// ever created plus the ordered event stream. Field names round-trip
// losslessly through the Store interface.
type LedgerState struct {
	Date   time.Time `json:"date"`
	Chunks []Chunk   `json:"chunks"`
	Events []Event   `json:"events"`
}

// Balance sums the held chunks of one asset in one account.
func (s *LedgerState) Balance(account, asset string) decimal.Decimal {
	total := decimal.Zero
	for i := range s.Chunks {
		c := &s.Chunks[i]
		if c.Held() && c.Asset == asset && c.Account() == account {
			total = total.Add(c.Amount)
		}
	}
	return total
}
