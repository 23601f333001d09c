package prices

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinanceFetcher resolves daily closing prices from Binance spot klines.
type BinanceFetcher struct {
	client *binance.Client
}

// NewBinanceFetcher creates a Binance-backed price fetcher.
func NewBinanceFetcher(client *binance.Client) *BinanceFetcher {
	return &BinanceFetcher{client: client}
}

// FetchDaily returns the 1d candle close for asset priced in unit.
func (f *BinanceFetcher) FetchDaily(ctx context.Context, unit, asset string, day time.Time) (decimal.Decimal, bool, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24*time.Hour - time.Millisecond)

	klines, err := f.client.NewKlinesService().
		Symbol(symbolFor(unit, asset)).
		Interval("1d").
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(1).
		Do(ctx)
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrapf(err, "failed to fetch %s kline from Binance for %s", asset, day.Format(dayLayout))
	}
	if len(klines) == 0 {
		return decimal.Decimal{}, false, nil
	}

	price, err := decimal.NewFromString(klines[0].Close)
	if err != nil {
		return decimal.Decimal{}, false, errors.Wrapf(err, "failed to parse close price %q", klines[0].Close)
	}
	return price, true, nil
}

// symbolFor builds the exchange symbol. Fiat USD is quoted via USDT, the
// liquid proxy both venues actually list.
func symbolFor(unit, asset string) string {
	quote := strings.ToUpper(unit)
	if quote == "USD" {
		quote = "USDT"
	}
	return strings.ToUpper(asset) + quote
}
