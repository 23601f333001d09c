// Package prices resolves historical asset prices with nearest-date
// fallback. Every resolved (unit, asset, day) is memoized so a date is never
// fetched twice, which matters because the gains generator asks per chunk.
package prices

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/chainledger/pkg/retrier"
)

const dayLayout = "2006-01-02"

// Fetcher retrieves the daily closing price of an asset from a venue.
// ok is false when the venue has no candle for that day.
type Fetcher interface {
	FetchDaily(ctx context.Context, unit, asset string, day time.Time) (price decimal.Decimal, ok bool, err error)
}

// Source is the lookup interface the gains generator consumes.
type Source interface {
	Nearest(ctx context.Context, unit, asset string, date time.Time) (decimal.Decimal, bool)
}

// Cache is a concurrency-safe memoizing price source. It serves recorded
// prices exactly, fetches unresolved days at most once, and falls back to
// the chronologically nearest recorded price, preferring the earlier day on
// ties.
type Cache struct {
	mu       sync.RWMutex
	prices   map[string]map[string]decimal.Decimal // unit/asset -> day -> price
	misses   map[string]map[string]bool            // unit/asset -> day fetched but absent
	inflight map[string]chan struct{}              // pair@day fetches in progress
	fetcher  Fetcher
	retr     *retrier.Retrier
	log      *zap.Logger
}

// NewCache builds a cache over an optional fetcher. With a nil fetcher only
// seeded prices are served.
func NewCache(fetcher Fetcher, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		prices:   make(map[string]map[string]decimal.Decimal),
		misses:   make(map[string]map[string]bool),
		inflight: make(map[string]chan struct{}),
		fetcher:  fetcher,
		retr:     retrier.New(retrier.WithMaxRetries(3)),
		log:      log.Named("prices"),
	}
}

func pairKey(unit, asset string) string { return unit + "/" + asset }

func dayOf(date time.Time) string { return date.UTC().Format(dayLayout) }

// Seed records a known price without touching the fetcher.
func (c *Cache) Seed(unit, asset string, day time.Time, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(pairKey(unit, asset), dayOf(day), price)
}

func (c *Cache) record(pair, day string, price decimal.Decimal) {
	if c.prices[pair] == nil {
		c.prices[pair] = make(map[string]decimal.Decimal)
	}
	c.prices[pair][day] = price
}

// Nearest resolves the price of asset in unit at date. The bool is false
// when no price is recorded or fetchable anywhere near the date.
func (c *Cache) Nearest(ctx context.Context, unit, asset string, date time.Time) (decimal.Decimal, bool) {
	if unit == asset {
		return decimal.NewFromInt(1), true
	}
	pair := pairKey(unit, asset)
	day := dayOf(date)

	c.mu.RLock()
	price, ok := c.prices[pair][day]
	missed := c.misses[pair][day]
	c.mu.RUnlock()
	if ok {
		return price, true
	}

	if c.fetcher != nil && !missed {
		c.fetch(ctx, unit, asset, date)
		c.mu.RLock()
		price, ok = c.prices[pair][day]
		c.mu.RUnlock()
		if ok {
			return price, true
		}
	}

	return c.nearestRecorded(pair, date)
}

// fetch asks the backend exactly once per day; failures and empty candles
// are memoized as misses so they are never re-requested. Concurrent callers
// for the same day share one in-flight request.
func (c *Cache) fetch(ctx context.Context, unit, asset string, date time.Time) {
	pair := pairKey(unit, asset)
	day := dayOf(date)
	key := pair + "@" + day

	c.mu.Lock()
	if done, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-done
		return
	}
	if _, ok := c.prices[pair][day]; ok || c.misses[pair][day] {
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.inflight[key] = done
	c.mu.Unlock()

	type fetched struct {
		price decimal.Decimal
		ok    bool
	}
	result, err := retrier.DoWithData(c.retr, ctx, func(ctx context.Context) (fetched, error) {
		price, ok, err := c.fetcher.FetchDaily(ctx, unit, asset, date)
		return fetched{price: price, ok: ok}, err
	})

	c.mu.Lock()
	if err != nil || !result.ok {
		if err != nil {
			c.log.Warn("price fetch failed",
				zap.String("pair", pair), zap.String("day", day), zap.Error(err))
		}
		if c.misses[pair] == nil {
			c.misses[pair] = make(map[string]bool)
		}
		c.misses[pair][day] = true
	} else {
		c.record(pair, day, result.price)
	}
	delete(c.inflight, key)
	c.mu.Unlock()
	close(done)
}

// nearestRecorded scans the recorded days of a pair for the one closest to
// date. Earlier days win ties, and the scan is deterministic regardless of
// map order.
func (c *Cache) nearestRecorded(pair string, date time.Time) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	target, _ := time.Parse(dayLayout, dayOf(date))
	var best decimal.Decimal
	var bestDay time.Time
	found := false
	for day, price := range c.prices[pair] {
		d, err := time.Parse(dayLayout, day)
		if err != nil {
			continue
		}
		if !found || closer(target, d, bestDay) {
			best, bestDay, found = price, d, true
		}
	}
	return best, found
}

// closer reports whether a is a better nearest-match for target than b.
func closer(target, a, b time.Time) bool {
	da, db := absDiff(target, a), absDiff(target, b)
	if da != db {
		return da < db
	}
	return a.Before(b)
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// Snapshot exports all recorded prices for persistence.
func (c *Cache) Snapshot() map[string]map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]map[string]string, len(c.prices))
	for pair, days := range c.prices {
		out[pair] = make(map[string]string, len(days))
		for day, price := range days {
			out[pair][day] = price.String()
		}
	}
	return out
}

// Restore merges a previously snapshotted price map into the cache.
// Unparseable entries are dropped with a warning.
func (c *Cache) Restore(snapshot map[string]map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pair, days := range snapshot {
		for day, raw := range days {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				c.log.Warn("dropping unparseable cached price",
					zap.String("pair", pair), zap.String("day", day))
				continue
			}
			c.record(pair, day, price)
		}
	}
}
