// Package classify maps the transfers of a settled transaction onto
// economic events: income, expense, trade, debt and guard changes.
package classify

import (
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/internal/addressbook"
	"github.com/vadiminshakov/chainledger/internal/domain"
)

// Outcome pairs a transfer with the chunks the ledger touched while
// applying it. Classification never mutates chunk state.
type Outcome struct {
	Transfer domain.Transfer
	// Created are chunks that entered our accounts through this transfer.
	Created []domain.ChunkIndex
	// Consumed are chunks disposed or moved out by this transfer.
	Consumed []domain.ChunkIndex
	// Clamped marks a transfer whose amount was reduced to the available
	// balance.
	Clamped bool
}

// Classifier derives events from transfer categories and the address
// categories of both counterparties.
type Classifier struct {
	book *addressbook.Book
	log  *zap.Logger
}

// New builds a classifier over an address book.
func New(book *addressbook.Book, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{book: book, log: log.Named("classify")}
}

// Classify produces the events of one transaction. Event indices start at
// next so the ledger's event stream stays densely numbered. Ambiguous
// combinations produce warnings, never silent drops.
func (c *Classifier) Classify(tx domain.Transaction, outcomes []Outcome, next int) ([]domain.Event, []domain.Warning) {
	var events []domain.Event
	var warnings []domain.Warning

	var swapsIn, swapsOut []Outcome

	for _, o := range outcomes {
		x := o.Transfer
		switch {
		case x.Category == domain.CategorySwapIn:
			swapsIn = append(swapsIn, o)
		case x.Category == domain.CategorySwapOut:
			swapsOut = append(swapsOut, o)
		case x.Category.Move():
			// Internal moves are not taxable, but crossing a guard
			// boundary is reportable.
			if ev, ok := c.guardChange(tx, o); ok {
				events = append(events, ev)
			}
		case x.Category == domain.CategoryIncome:
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventIncome,
				Asset: x.Asset, Amount: x.Amount, Account: x.To,
				TxID: tx.ID, Inputs: o.Created,
			})
		case x.Category == domain.CategoryExpense || x.Category == domain.CategoryFee:
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventExpense,
				Asset: x.Asset, Amount: x.Amount, Account: x.From,
				TxID: tx.ID, Outputs: o.Consumed,
			})
		case x.Category == domain.CategoryBorrow:
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventDebt,
				Asset: x.Asset, Amount: x.Amount, Account: x.To,
				TxID: tx.ID, Inputs: o.Created,
			})
		case x.Category == domain.CategoryRepay:
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventDebt,
				Asset: x.Asset, Amount: x.Amount, Account: x.From,
				TxID: tx.ID, Outputs: o.Consumed,
			})
		default:
			c.log.Warn("unrecognized transfer category",
				zap.String("tx", tx.ID),
				zap.String("category", string(x.Category)),
				zap.String("from", string(c.book.CategoryOf(x.From))),
				zap.String("to", string(c.book.CategoryOf(x.To))))
			warnings = append(warnings, domain.Warning{
				Code: domain.WarnUnknownCategory, TxID: tx.ID, Date: tx.Date,
				Message: "no classification rule for category " + string(x.Category),
			})
		}
	}

	// A trade needs both legs in the same transaction. Orphan swaps are
	// classified like plain income/expense so no value goes missing.
	if len(swapsIn) > 0 && len(swapsOut) > 0 {
		ev := domain.Event{
			Date: tx.Date, Type: domain.EventTrade, TxID: tx.ID,
			Asset:   swapsIn[0].Transfer.Asset,
			Amount:  swapsIn[0].Transfer.Amount,
			Account: swapsIn[0].Transfer.To,
		}
		for _, o := range swapsOut {
			ev.Outputs = append(ev.Outputs, o.Consumed...)
		}
		for _, o := range swapsIn {
			ev.Inputs = append(ev.Inputs, o.Created...)
		}
		events = append(events, ev)
	} else {
		for _, o := range swapsIn {
			warnings = append(warnings, domain.Warning{
				Code: domain.WarnUnmatchedSwap, TxID: tx.ID, Date: tx.Date,
				Message: "swap-in without matching swap-out, treated as income",
			})
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventIncome,
				Asset: o.Transfer.Asset, Amount: o.Transfer.Amount,
				Account: o.Transfer.To, TxID: tx.ID, Inputs: o.Created,
			})
		}
		for _, o := range swapsOut {
			warnings = append(warnings, domain.Warning{
				Code: domain.WarnUnmatchedSwap, TxID: tx.ID, Date: tx.Date,
				Message: "swap-out without matching swap-in, treated as expense",
			})
			events = append(events, domain.Event{
				Date: tx.Date, Type: domain.EventExpense,
				Asset: o.Transfer.Asset, Amount: o.Transfer.Amount,
				Account: o.Transfer.From, TxID: tx.ID, Outputs: o.Consumed,
			})
		}
	}

	for i := range events {
		events[i].Index = next + i
	}
	return events, warnings
}

// guardChange emits a GuardChange event when a move crosses jurisdictions.
func (c *Classifier) guardChange(tx domain.Transaction, o Outcome) (domain.Event, bool) {
	x := o.Transfer
	fromGuard := c.book.GuardOf(x.From)
	toGuard := c.book.GuardOf(x.To)
	if fromGuard == toGuard {
		return domain.Event{}, false
	}
	return domain.Event{
		Date: tx.Date, Type: domain.EventGuardChange,
		Asset: x.Asset, Amount: x.Amount, Account: x.To, TxID: tx.ID,
		Inputs:    o.Created,
		FromGuard: fromGuard,
		ToGuard:   toGuard,
	}, true
}
