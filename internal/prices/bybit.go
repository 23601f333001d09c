package prices

import (
	"context"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitFetcher resolves daily closing prices from Bybit V5 spot klines.
type BybitFetcher struct {
	client *bybit.Client
}

// NewBybitFetcher creates a Bybit-backed price fetcher.
func NewBybitFetcher(client *bybit.Client) *BybitFetcher {
	return &BybitFetcher{client: client}
}

// FetchDaily returns the daily candle close for asset priced in unit.
func (f *BybitFetcher) FetchDaily(ctx context.Context, unit, asset string, day time.Time) (decimal.Decimal, bool, error) {
	start := day.UTC().Truncate(24 * time.Hour).UnixMilli()
	end := day.UTC().Truncate(24*time.Hour).Add(24*time.Hour - time.Millisecond).UnixMilli()
	limit := 1

	result, err := f.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbolFor(unit, asset)),
		Interval: bybit.IntervalD,
		Start:    &start,
		End:      &end,
		Limit:    &limit,
	})
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrapf(err, "failed to fetch %s kline from Bybit for %s", asset, day.Format(dayLayout))
	}
	if len(result.Result.List) == 0 {
		return decimal.Decimal{}, false, nil
	}

	price, err := decimal.NewFromString(result.Result.List[0].Close)
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrapf(err, "failed to parse close price %q", result.Result.List[0].Close)
	}
	return price, true, nil
}
