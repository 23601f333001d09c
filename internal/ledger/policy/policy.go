// Package policy implements the lot-selection strategies that decide which
// chunks of a fungible asset satisfy an outgoing transfer.
package policy

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/chainledger/internal/domain"
)

// ErrInsufficientBalance is returned when the queue cannot cover the
// requested amount. The ledger decides whether to clamp or fail.
var ErrInsufficientBalance = errors.New("insufficient balance in chunk queue")

// Candidate is one undisposed chunk offered to a policy. Moves can leave the
// queue out of receive order, so ordering policies sort by ReceiveDate
// themselves instead of trusting queue order.
type Candidate struct {
	Index       domain.ChunkIndex
	Asset       string
	Amount      decimal.Decimal
	ReceiveDate time.Time
}

// Selection consumes part or all of one chunk.
type Selection struct {
	Index  domain.ChunkIndex
	Amount decimal.Decimal
}

// Policy picks which chunks satisfy an outgoing amount. Implementations are
// pure: they never mutate the queue and never skip a chunk once the amount
// is satisfied.
type Policy interface {
	Name() string
	Select(queue []Candidate, amount decimal.Decimal) ([]Selection, error)
}

// consume walks candidates in the given order, fully consuming each chunk
// until the remainder fits inside one, which is then partially consumed.
func consume(ordered []Candidate, amount decimal.Decimal) ([]Selection, error) {
	var out []Selection
	togo := amount
	for _, c := range ordered {
		if togo.IsZero() {
			break
		}
		take := c.Amount
		if take.GreaterThan(togo) {
			take = togo
		}
		out = append(out, Selection{Index: c.Index, Amount: take})
		togo = togo.Sub(take)
	}
	if togo.IsPositive() {
		return out, errors.Wrapf(ErrInsufficientBalance, "still need %s after consuming %d chunks", togo, len(out))
	}
	return out, nil
}

// byReceiveDate orders candidates by ascending receive date, ties broken by
// creation order. desc reverses the whole order.
func byReceiveDate(queue []Candidate, desc bool) []Candidate {
	ordered := make([]Candidate, len(queue))
	copy(ordered, queue)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if desc {
			a, b = b, a
		}
		if !a.ReceiveDate.Equal(b.ReceiveDate) {
			return a.ReceiveDate.Before(b.ReceiveDate)
		}
		return a.Index < b.Index
	})
	return ordered
}

// FIFO consumes chunks in ascending receive order, ties broken by creation
// order.
type FIFO struct{}

func (FIFO) Name() string { return "fifo" }

func (FIFO) Select(queue []Candidate, amount decimal.Decimal) ([]Selection, error) {
	return consume(byReceiveDate(queue, false), amount)
}

// LIFO consumes chunks in descending receive order.
type LIFO struct{}

func (LIFO) Name() string { return "lifo" }

func (LIFO) Select(queue []Candidate, amount decimal.Decimal) ([]Selection, error) {
	return consume(byReceiveDate(queue, true), amount)
}

// HIFO consumes chunks in descending order of cost basis, falling back to
// FIFO order on ties. Basis typically returns the receive-time price of the
// chunk's asset.
type HIFO struct {
	Basis func(c Candidate) decimal.Decimal
}

func (HIFO) Name() string { return "hifo" }

func (p HIFO) Select(queue []Candidate, amount decimal.Decimal) ([]Selection, error) {
	if p.Basis == nil {
		return nil, errors.New("hifo policy requires a cost basis source")
	}
	// Stable sort over receive order so equal bases fall back to FIFO.
	ordered := byReceiveDate(queue, false)
	sort.SliceStable(ordered, func(i, j int) bool {
		return p.Basis(ordered[i]).GreaterThan(p.Basis(ordered[j]))
	})
	return consume(ordered, amount)
}

// ForName returns the policy registered under a config name.
func ForName(name string, basis func(c Candidate) decimal.Decimal) (Policy, error) {
	switch name {
	case "fifo", "":
		return FIFO{}, nil
	case "lifo":
		return LIFO{}, nil
	case "hifo":
		return HIFO{Basis: basis}, nil
	}
	return nil, errors.Errorf("unknown lot-selection policy %q", name)
}
