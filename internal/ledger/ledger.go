// Package ledger folds an ordered transaction sequence into a set of
// provenance-tracked asset chunks plus an event stream. The fold is strictly
// sequential and deterministic: the same input and policy always produce
// byte-identical output.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/internal/addressbook"
	"github.com/vadiminshakov/chainledger/internal/classify"
	"github.com/vadiminshakov/chainledger/internal/domain"
	"github.com/vadiminshakov/chainledger/internal/ledger/policy"
)

// ErrPolicyViolation means a lot-selection policy returned an inconsistent
// selection. It aborts the whole run because it indicates an implementation
// bug, not bad input data.
var ErrPolicyViolation = errors.New("lot-selection policy violation")

// ErrConservation means the per-account chunk totals diverged from the net
// transfer flow, which should be impossible.
var ErrConservation = errors.New("conservation invariant violated")

var defaultTolerance = decimal.RequireFromString("0.000000001")

type queueKey struct {
	account string
	asset   string
}

func (k queueKey) String() string { return k.account + ":" + k.asset }

// Ledger is the value-tracking state machine. It is not safe for concurrent
// use; the resulting LedgerState is immutable and safe to share once the
// fold ends.
type Ledger struct {
	book       *addressbook.Book
	pol        policy.Policy
	classifier *classify.Classifier
	tolerance  decimal.Decimal
	log        *zap.Logger

	date     time.Time
	chunks   []domain.Chunk
	queues   map[queueKey][]domain.ChunkIndex
	everHeld map[queueKey]bool
	expected map[queueKey]decimal.Decimal
	events   []domain.Event
	warnings []domain.Warning
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTolerance overrides the rounding tolerance used before an outgoing
// transfer is reported as exceeding the tracked balance.
func WithTolerance(tol decimal.Decimal) Option {
	return func(l *Ledger) { l.tolerance = tol }
}

// WithLogger attaches a logger to the fold.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New builds an empty ledger over an address book and a lot-selection policy.
func New(book *addressbook.Book, pol policy.Policy, opts ...Option) *Ledger {
	l := &Ledger{
		book:      book,
		pol:       pol,
		tolerance: defaultTolerance,
		log:       zap.NewNop(),
		queues:    make(map[queueKey][]domain.ChunkIndex),
		everHeld:  make(map[queueKey]bool),
		expected:  make(map[queueKey]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.Named("ledger")
	l.classifier = classify.New(book, l.log)
	return l
}

// Result is the output of a finished fold.
type Result struct {
	State    domain.LedgerState
	Warnings []domain.Warning
}

// ApplyAll folds the transactions in order. Only a policy violation or a
// conservation failure aborts; every other condition degrades into a warning
// kept in the result.
func (l *Ledger) ApplyAll(txs []domain.Transaction) (*Result, error) {
	for i := range txs {
		if err := l.Apply(txs[i]); err != nil {
			return nil, err
		}
	}
	return &Result{State: l.State(), Warnings: l.warnings}, nil
}

// Apply folds one transaction. Transfer order within the transaction is
// significant and preserved.
func (l *Ledger) Apply(tx domain.Transaction) error {
	l.log.Debug("processing transaction",
		zap.String("tx", tx.ID),
		zap.Time("date", tx.Date),
		zap.Int("transfers", len(tx.Transfers)))

	outcomes := make([]classify.Outcome, 0, len(tx.Transfers))
	for _, x := range tx.Transfers {
		outcome, err := l.applyTransfer(tx, x)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := l.checkConservation(tx); err != nil {
		return err
	}

	events, warns := l.classifier.Classify(tx, outcomes, len(l.events))
	l.events = append(l.events, events...)
	l.warnings = append(l.warnings, warns...)
	l.date = tx.Date
	return nil
}

func (l *Ledger) applyTransfer(tx domain.Transaction, x domain.Transfer) (classify.Outcome, error) {
	outcome := classify.Outcome{Transfer: x}
	fromSelf := l.book.IsSelf(x.From)
	toSelf := l.book.IsSelf(x.To)

	switch {
	case x.Category.Inbound() && toSelf,
		x.Category.Move() && !fromSelf && toSelf:
		idx := l.receive(tx, x)
		outcome.Created = []domain.ChunkIndex{idx}

	case x.Category.Outbound() && fromSelf,
		x.Category.Move() && fromSelf && !toSelf:
		consumed, clamped, err := l.dispose(tx, x, false)
		if err != nil {
			return outcome, err
		}
		outcome.Consumed = consumed
		outcome.Clamped = clamped

	case x.Category.Move() && fromSelf && toSelf:
		moved, clamped, err := l.dispose(tx, x, true)
		if err != nil {
			return outcome, err
		}
		// Moved chunks both leave the source and enter the destination.
		outcome.Consumed = moved
		outcome.Created = moved
		outcome.Clamped = clamped

	case x.Category == domain.CategoryUnknown:
		// The classifier records the warning; chunk state stays untouched.

	default:
		// Neither side is ours, or the category makes no sense for the
		// accounts involved. Chunk state stays untouched.
		l.warn(domain.Warning{
			Code: domain.WarnMalformedTransaction, TxID: tx.ID, Date: tx.Date,
			Message: fmt.Sprintf("transfer of %s %s (%s) touches no tracked account", x.Amount, x.Asset, x.Category),
		})
	}
	return outcome, nil
}

// receive creates a fresh chunk with a single-entry history.
func (l *Ledger) receive(tx domain.Transaction, x domain.Transfer) domain.ChunkIndex {
	key := queueKey{account: x.To, asset: x.Asset}
	idx := domain.ChunkIndex(len(l.chunks))
	l.chunks = append(l.chunks, domain.Chunk{
		Index:    idx,
		Asset:    x.Asset,
		Amount:   x.Amount,
		History:  []domain.HistoryEntry{{Date: tx.Date, From: x.From, To: x.To}},
		Borrowed: x.Category == domain.CategoryBorrow,
	})
	l.queues[key] = append(l.queues[key], idx)
	l.everHeld[key] = true
	l.expected[key] = l.expectedOf(key).Add(x.Amount)
	return idx
}

// dispose consumes chunks from the source queue through the policy. When
// move is true the consumed chunks change account instead of leaving our
// books.
func (l *Ledger) dispose(tx domain.Transaction, x domain.Transfer, move bool) ([]domain.ChunkIndex, bool, error) {
	key := queueKey{account: x.From, asset: x.Asset}
	available := l.available(key)

	if available.IsZero() && !l.everHeld[key] {
		// Nothing of this asset was ever received here: the transaction
		// itself is broken, not merely off by rounding.
		l.warn(domain.Warning{
			Code: domain.WarnInsufficientBalance, TxID: tx.ID, Date: tx.Date,
			Message: fmt.Sprintf("outbound %s %s from %s but the asset was never held there", x.Amount, x.Asset, x.From),
		})
		return nil, false, nil
	}

	amount := x.Amount
	clamped := false
	if amount.GreaterThan(available) {
		if amount.Sub(available).GreaterThan(l.tolerance) {
			l.warn(domain.Warning{
				Code: domain.WarnInsufficientBalance, TxID: tx.ID, Date: tx.Date,
				Message: fmt.Sprintf("outbound %s %s from %s exceeds tracked balance %s, clamped", x.Amount, x.Asset, x.From, available),
			})
			clamped = true
		}
		amount = available
	}
	if amount.IsZero() {
		return nil, clamped, nil
	}

	selections, err := l.pol.Select(l.candidates(key), amount)
	if err != nil {
		return nil, clamped, errors.Wrapf(ErrPolicyViolation, "%s policy failed for %s: %v", l.pol.Name(), key, err)
	}
	if err := l.verifySelections(selections, amount); err != nil {
		return nil, clamped, err
	}

	touched := make([]domain.ChunkIndex, 0, len(selections))
	entry := domain.HistoryEntry{Date: tx.Date, From: x.From, To: x.To}
	for _, sel := range selections {
		idx := l.consume(key, sel, entry, move)
		touched = append(touched, idx)
		if move {
			destKey := queueKey{account: x.To, asset: x.Asset}
			l.queues[destKey] = append(l.queues[destKey], idx)
			l.everHeld[destKey] = true
			l.expected[destKey] = l.expectedOf(destKey).Add(sel.Amount)
		}
	}
	l.expected[key] = l.expectedOf(key).Sub(amount)
	return touched, clamped, nil
}

// consume applies one selection: a full consumption appends to the chunk's
// history in place, a partial one supersedes the chunk with two children
// summing to the parent amount. Returns the index of the consumed (or moved)
// chunk.
func (l *Ledger) consume(key queueKey, sel policy.Selection, entry domain.HistoryEntry, move bool) domain.ChunkIndex {
	parent := &l.chunks[sel.Index]

	if sel.Amount.Equal(parent.Amount) {
		parent.History = append(parent.History, entry)
		if !move {
			d := entry.Date
			parent.DisposeDate = &d
		}
		l.dropFromQueue(key, sel.Index)
		return sel.Index
	}

	// Split: consumed child carries the full history plus the new hop,
	// the remainder child keeps the history prefix and the parent's place
	// in the queue.
	consumedIdx := domain.ChunkIndex(len(l.chunks))
	consumed := domain.Chunk{
		Index:    consumedIdx,
		Asset:    parent.Asset,
		Amount:   sel.Amount,
		History:  append(append([]domain.HistoryEntry{}, parent.History...), entry),
		Borrowed: parent.Borrowed,
	}
	if !move {
		d := entry.Date
		consumed.DisposeDate = &d
	}
	l.chunks = append(l.chunks, consumed)

	remainderIdx := domain.ChunkIndex(len(l.chunks))
	l.chunks = append(l.chunks, domain.Chunk{
		Index:    remainderIdx,
		Asset:    parent.Asset,
		Amount:   parent.Amount.Sub(sel.Amount),
		History:  append([]domain.HistoryEntry{}, parent.History...),
		Borrowed: parent.Borrowed,
	})

	// Reload: the appends above may have grown the arena.
	parent = &l.chunks[sel.Index]
	parent.SplitInto = []domain.ChunkIndex{consumedIdx, remainderIdx}
	l.replaceInQueue(key, sel.Index, remainderIdx)

	l.log.Debug("split chunk",
		zap.Int("parent", int(sel.Index)),
		zap.String("consumed", sel.Amount.String()),
		zap.String("remainder", l.chunks[remainderIdx].Amount.String()))
	return consumedIdx
}

func (l *Ledger) verifySelections(selections []policy.Selection, amount decimal.Decimal) error {
	total := decimal.Zero
	seen := make(map[domain.ChunkIndex]bool, len(selections))
	for _, sel := range selections {
		if seen[sel.Index] {
			return errors.Wrapf(ErrPolicyViolation, "chunk %d selected twice", sel.Index)
		}
		seen[sel.Index] = true
		if !sel.Amount.IsPositive() || sel.Amount.GreaterThan(l.chunks[sel.Index].Amount) {
			return errors.Wrapf(ErrPolicyViolation, "chunk %d consumed %s of %s", sel.Index, sel.Amount, l.chunks[sel.Index].Amount)
		}
		total = total.Add(sel.Amount)
	}
	if !total.Equal(amount) {
		return errors.Wrapf(ErrPolicyViolation, "selections sum to %s, want %s", total, amount)
	}
	return nil
}

// checkConservation verifies, after every transaction, that for each
// (account, asset) the held chunk total equals net inbound minus outbound.
func (l *Ledger) checkConservation(tx domain.Transaction) error {
	keys := make([]queueKey, 0, len(l.expected))
	for k := range l.expected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		held := l.available(k)
		if !held.Equal(l.expectedOf(k)) {
			return errors.Wrapf(ErrConservation, "%s holds %s, expected %s after tx %s", k, held, l.expectedOf(k), tx.ID)
		}
	}
	return nil
}

func (l *Ledger) candidates(key queueKey) []policy.Candidate {
	queue := l.queues[key]
	out := make([]policy.Candidate, len(queue))
	for i, idx := range queue {
		c := &l.chunks[idx]
		out[i] = policy.Candidate{
			Index:       idx,
			Asset:       c.Asset,
			Amount:      c.Amount,
			ReceiveDate: c.ReceiveDate(),
		}
	}
	return out
}

func (l *Ledger) available(key queueKey) decimal.Decimal {
	total := decimal.Zero
	for _, idx := range l.queues[key] {
		total = total.Add(l.chunks[idx].Amount)
	}
	return total
}

func (l *Ledger) expectedOf(key queueKey) decimal.Decimal {
	if v, ok := l.expected[key]; ok {
		return v
	}
	return decimal.Zero
}

func (l *Ledger) dropFromQueue(key queueKey, idx domain.ChunkIndex) {
	queue := l.queues[key]
	for i, q := range queue {
		if q == idx {
			l.queues[key] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

func (l *Ledger) replaceInQueue(key queueKey, old, repl domain.ChunkIndex) {
	queue := l.queues[key]
	for i, q := range queue {
		if q == old {
			queue[i] = repl
			return
		}
	}
}

func (l *Ledger) warn(w domain.Warning) {
	l.log.Warn(w.Message, zap.String("code", string(w.Code)), zap.String("tx", w.TxID))
	l.warnings = append(l.warnings, w)
}

// Warnings returns the warnings accumulated so far.
func (l *Ledger) Warnings() []domain.Warning {
	return l.warnings
}

// State snapshots the ledger into its serializable form.
func (l *Ledger) State() domain.LedgerState {
	chunks := make([]domain.Chunk, len(l.chunks))
	copy(chunks, l.chunks)
	events := make([]domain.Event, len(l.events))
	copy(events, l.events)
	return domain.LedgerState{Date: l.date, Chunks: chunks, Events: events}
}
