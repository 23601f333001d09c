package internal

import (
	"context"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/config"
	"github.com/vadiminshakov/chainledger/internal/addressbook"
	"github.com/vadiminshakov/chainledger/internal/domain"
	"github.com/vadiminshakov/chainledger/internal/gains"
	"github.com/vadiminshakov/chainledger/internal/ledger"
	"github.com/vadiminshakov/chainledger/internal/ledger/policy"
	"github.com/vadiminshakov/chainledger/internal/normalize"
	"github.com/vadiminshakov/chainledger/internal/prices"
	"github.com/vadiminshakov/chainledger/internal/storage"
	"github.com/vadiminshakov/chainledger/internal/storage/filestore"
	"github.com/vadiminshakov/chainledger/internal/storage/walstore"
	"github.com/vadiminshakov/chainledger/internal/web"
)

// App runs one complete tax pipeline: normalize, fold, price, report.
type App struct {
	cfg *config.Config
	log *zap.Logger
}

// NewApp creates the pipeline for one configuration.
func NewApp(cfg *config.Config, log *zap.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// Run executes the pipeline and optionally serves the report until ctx ends.
func (a *App) Run(ctx context.Context) error {
	book, err := addressbook.New(a.cfg.AddressBook)
	if err != nil {
		return errors.Wrap(err, "failed to build address book")
	}

	store, err := newStore(a.cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer store.Close()

	cache := prices.NewCache(newPriceFetcher(a.cfg.Platform), a.log)
	var cached map[string]map[string]string
	if found, err := store.Load(storage.KeyPriceCache, &cached); err != nil {
		return errors.Wrap(err, "failed to load price cache")
	} else if found {
		cache.Restore(cached)
	}

	pol, err := policy.ForName(a.cfg.Policy, receiveBasis(ctx, cache, a.cfg.Unit))
	if err != nil {
		return err
	}

	txs, warnings, err := normalize.File(a.cfg.Transactions, a.log)
	if err != nil {
		return errors.Wrap(err, "failed to normalize transactions")
	}
	a.log.Info("normalized transactions",
		zap.Int("count", len(txs)), zap.Int("skipped", len(warnings)))

	led := ledger.New(book, pol,
		ledger.WithTolerance(a.cfg.Tolerance),
		ledger.WithLogger(a.log))
	result, err := led.ApplyAll(txs)
	if err != nil {
		return errors.Wrap(err, "ledger fold failed")
	}
	warnings = append(warnings, result.Warnings...)
	a.log.Info("ledger fold finished",
		zap.Int("chunks", len(result.State.Chunks)),
		zap.Int("events", len(result.State.Events)))

	periodStart, periodEnd := a.cfg.Period()
	rows, rowWarnings := gains.New(cache, book, a.log).Generate(ctx, result.State, gains.Params{
		Unit:          a.cfg.Unit,
		Guard:         a.cfg.Guard,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		LongTermAfter: a.cfg.LongTermAfter,
	})
	warnings = append(warnings, rowWarnings...)
	a.log.Info("generated tax rows",
		zap.Int("rows", len(rows)),
		zap.Int("warnings", len(warnings)),
		zap.Int("tax_year", a.cfg.TaxYear),
		zap.String("guard", a.cfg.Guard))

	if err := persist(store, result.State, rows, warnings, cache); err != nil {
		return err
	}

	if a.cfg.Listen != "" {
		a.log.Info("serving report", zap.String("addr", a.cfg.Listen))
		return web.NewServer(a.cfg.Listen, store).Start(ctx)
	}
	return nil
}

func persist(store storage.Store, state domain.LedgerState, rows []domain.TaxRow, warnings []domain.Warning, cache *prices.Cache) error {
	if err := store.Save(storage.KeyLedgerState, state); err != nil {
		return errors.Wrap(err, "failed to persist ledger state")
	}
	if err := store.Save(storage.KeyTaxRows, rows); err != nil {
		return errors.Wrap(err, "failed to persist tax rows")
	}
	if err := store.Save(storage.KeyWarnings, warnings); err != nil {
		return errors.Wrap(err, "failed to persist warnings")
	}
	if err := store.Save(storage.KeyPriceCache, cache.Snapshot()); err != nil {
		return errors.Wrap(err, "failed to persist price cache")
	}
	return nil
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case "file":
		return filestore.New(cfg.DataDir)
	default:
		return walstore.New(cfg.DataDir)
	}
}

// newPriceFetcher picks the exchange backend missing historical prices are
// fetched from. Public kline endpoints need no API keys.
func newPriceFetcher(platform string) prices.Fetcher {
	switch platform {
	case "binance":
		return prices.NewBinanceFetcher(binance.NewClient("", ""))
	case "bybit":
		return prices.NewBybitFetcher(bybit.NewClient())
	default:
		return nil
	}
}

// receiveBasis gives the HIFO policy its cost-basis source: the unit price
// of the chunk's asset around its receive date. Chunks without a resolvable
// price sort last.
func receiveBasis(ctx context.Context, cache *prices.Cache, unit string) func(c policy.Candidate) decimal.Decimal {
	return func(c policy.Candidate) decimal.Decimal {
		price, ok := cache.Nearest(ctx, unit, c.Asset, c.ReceiveDate)
		if !ok {
			return decimal.Zero
		}
		return price
	}
}
