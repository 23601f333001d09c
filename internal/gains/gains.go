// Package gains turns a finished chunk set into per-disposal capital
// gain/loss rows for one jurisdiction and tax period.
package gains

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/internal/addressbook"
	"github.com/vadiminshakov/chainledger/internal/domain"
	"github.com/vadiminshakov/chainledger/internal/prices"
)

// DefaultLongTermAfter is the common one-year holding threshold. It is a
// parameter, not a rule: jurisdictions override it in Params.
const DefaultLongTermAfter = 365 * 24 * time.Hour

const prefetchWorkers = 8

// Params scope a report to one jurisdiction, period and pricing unit.
type Params struct {
	Unit          string
	Guard         string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	LongTermAfter time.Duration
}

// Generator derives tax rows from an immutable ledger state. It only reads
// the chunk set, so independent price lookups may run concurrently.
type Generator struct {
	src  prices.Source
	book *addressbook.Book
	log  *zap.Logger
}

// New builds a generator over a price source and an address book.
func New(src prices.Source, book *addressbook.Book, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{src: src, book: book, log: log.Named("gains")}
}

// Generate emits one row per in-scope disposal plus income receipts valued
// at receive time. Chunks without a resolvable price on either side are
// skipped with a warning instead of failing the report.
func (g *Generator) Generate(ctx context.Context, state domain.LedgerState, p Params) ([]domain.TaxRow, []domain.Warning) {
	if p.LongTermAfter <= 0 {
		p.LongTermAfter = DefaultLongTermAfter
	}

	disposals := g.inScopeDisposals(state, p)
	incomes := g.inScopeIncomes(state, p)
	g.prefetch(ctx, p.Unit, disposals, incomes, state)

	var rows []domain.TaxRow
	var warnings []domain.Warning

	for _, c := range disposals {
		receivePrice, ok := g.src.Nearest(ctx, p.Unit, c.Asset, c.ReceiveDate())
		if !ok {
			warnings = append(warnings, priceWarning(c, "receive"))
			continue
		}
		disposePrice, ok := g.src.Nearest(ctx, p.Unit, c.Asset, *c.DisposeDate)
		if !ok {
			warnings = append(warnings, priceWarning(c, "dispose"))
			continue
		}

		term := domain.TermShort
		if c.DisposeDate.Sub(c.ReceiveDate()) >= p.LongTermAfter {
			term = domain.TermLong
		}
		rows = append(rows, domain.TaxRow{
			Date:          *c.DisposeDate,
			Action:        domain.RowTrade,
			Asset:         c.Asset,
			Amount:        c.Amount,
			Price:         disposePrice,
			Value:         disposePrice.Mul(c.Amount),
			ReceiveDate:   c.ReceiveDate(),
			ReceivePrice:  receivePrice,
			CapitalChange: disposePrice.Sub(receivePrice).Mul(c.Amount),
			Term:          term,
			Chunk:         c.Index,
		})
	}

	for _, in := range incomes {
		c := &state.Chunks[in]
		price, ok := g.src.Nearest(ctx, p.Unit, c.Asset, c.ReceiveDate())
		if !ok {
			warnings = append(warnings, priceWarning(c, "receive"))
			continue
		}
		rows = append(rows, domain.TaxRow{
			Date:          c.ReceiveDate(),
			Action:        domain.RowIncome,
			Asset:         c.Asset,
			Amount:        c.Amount,
			Price:         price,
			Value:         price.Mul(c.Amount),
			ReceiveDate:   c.ReceiveDate(),
			ReceivePrice:  price,
			CapitalChange: decimal.Zero,
			Term:          domain.TermShort,
			Chunk:         c.Index,
		})
	}

	rows = mergeRows(rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Chunk < rows[j].Chunk
	})
	return rows, warnings
}

// inScopeDisposals picks the chunks whose disposal falls inside the period
// and whose disposing account belongs to the jurisdiction. Borrowed chunks
// are loan repayments, not disposals of owned value.
func (g *Generator) inScopeDisposals(state domain.LedgerState, p Params) []*domain.Chunk {
	var out []*domain.Chunk
	for i := range state.Chunks {
		c := &state.Chunks[i]
		if !c.Disposed() || c.Superseded() || c.Borrowed || c.Asset == p.Unit {
			continue
		}
		if c.DisposeDate.Before(p.PeriodStart) || c.DisposeDate.After(p.PeriodEnd) {
			continue
		}
		if p.Guard != "" && g.book.GuardOf(c.Account()) != p.Guard {
			continue
		}
		out = append(out, c)
	}
	return out
}

// inScopeIncomes picks the chunks received through income events inside the
// period and jurisdiction.
func (g *Generator) inScopeIncomes(state domain.LedgerState, p Params) []domain.ChunkIndex {
	var out []domain.ChunkIndex
	for _, ev := range state.Events {
		if ev.Type != domain.EventIncome {
			continue
		}
		if ev.Date.Before(p.PeriodStart) || ev.Date.After(p.PeriodEnd) {
			continue
		}
		if p.Guard != "" && g.book.GuardOf(ev.Account) != p.Guard {
			continue
		}
		for _, idx := range ev.Inputs {
			if state.Chunks[idx].Asset == p.Unit {
				continue
			}
			out = append(out, idx)
		}
	}
	return out
}

// prefetch resolves every distinct (asset, day) pair concurrently before the
// sequential row pass, so the pass itself only hits the memoized cache.
func (g *Generator) prefetch(ctx context.Context, unit string, disposals []*domain.Chunk, incomes []domain.ChunkIndex, state domain.LedgerState) {
	type query struct {
		asset string
		date  time.Time
	}
	seen := make(map[string]bool)
	var queries []query
	add := func(asset string, date time.Time) {
		key := asset + "@" + date.UTC().Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			queries = append(queries, query{asset: asset, date: date})
		}
	}
	for _, c := range disposals {
		add(c.Asset, c.ReceiveDate())
		add(c.Asset, *c.DisposeDate)
	}
	for _, idx := range incomes {
		c := &state.Chunks[idx]
		add(c.Asset, c.ReceiveDate())
	}

	sem := make(chan struct{}, prefetchWorkers)
	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(q query) {
			defer wg.Done()
			defer func() { <-sem }()
			g.src.Nearest(ctx, unit, q.asset, q.date)
		}(q)
	}
	wg.Wait()
}

// mergeRows folds together rows of the same action, asset, dispose day and
// receive day, matching how disposals split across chunks of one lot should
// report as a single line.
func mergeRows(rows []domain.TaxRow) []domain.TaxRow {
	var out []domain.TaxRow
	for _, row := range rows {
		merged := false
		for i := range out {
			r := &out[i]
			if r.Action == row.Action && r.Asset == row.Asset &&
				sameDay(r.Date, row.Date) && sameDay(r.ReceiveDate, row.ReceiveDate) {
				r.Amount = r.Amount.Add(row.Amount)
				r.Value = r.Value.Add(row.Value)
				r.CapitalChange = r.CapitalChange.Add(row.CapitalChange)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, row)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func priceWarning(c *domain.Chunk, side string) domain.Warning {
	return domain.Warning{
		Code:    domain.WarnPriceUnavailable,
		Date:    c.ReceiveDate(),
		Message: "no price available near " + side + " date of chunk " + c.Asset,
	}
}
