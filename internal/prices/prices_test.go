package prices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// countingFetcher serves a fixed day->price map and counts calls per day.
type countingFetcher struct {
	mu     sync.Mutex
	known  map[string]decimal.Decimal
	calls  map[string]int
	failAt map[string]bool
	delay  time.Duration
}

func newCountingFetcher(known map[string]decimal.Decimal) *countingFetcher {
	return &countingFetcher{
		known:  known,
		calls:  make(map[string]int),
		failAt: make(map[string]bool),
	}
}

func (f *countingFetcher) FetchDaily(_ context.Context, _, _ string, day time.Time) (decimal.Decimal, bool, error) {
	key := day.UTC().Format(dayLayout)
	f.mu.Lock()
	f.calls[key]++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failAt[key] {
		return decimal.Zero, false, errors.New("venue unavailable")
	}
	price, ok := f.known[key]
	return price, ok, nil
}

func (f *countingFetcher) callsFor(day string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[day]
}

func date(day string) time.Time {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUnitPricedInItselfIsOne(t *testing.T) {
	c := NewCache(nil, nil)
	price, ok := c.Nearest(context.Background(), "USD", "USD", date("2023-06-01"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(1)))
}

func TestExactDayIsFetchedExactlyOnce(t *testing.T) {
	f := newCountingFetcher(map[string]decimal.Decimal{
		"2023-06-01": decimal.NewFromInt(1800),
	})
	c := NewCache(f, nil)

	for i := 0; i < 5; i++ {
		price, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-01"))
		require.True(t, ok)
		require.True(t, price.Equal(decimal.NewFromInt(1800)))
	}
	require.Equal(t, 1, f.callsFor("2023-06-01"))
}

func TestMissesAreMemoized(t *testing.T) {
	f := newCountingFetcher(map[string]decimal.Decimal{})
	c := NewCache(f, nil)

	_, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-01"))
	require.False(t, ok)
	_, ok = c.Nearest(context.Background(), "USD", "ETH", date("2023-06-01"))
	require.False(t, ok)
	require.Equal(t, 1, f.callsFor("2023-06-01"))
}

func TestNearestFallsBackToClosestRecordedDay(t *testing.T) {
	c := NewCache(nil, nil)
	c.Seed("USD", "ETH", date("2023-06-01"), decimal.NewFromInt(1800))
	c.Seed("USD", "ETH", date("2023-06-10"), decimal.NewFromInt(1900))

	price, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-03"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(1800)))

	price, ok = c.Nearest(context.Background(), "USD", "ETH", date("2023-06-08"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(1900)))
}

func TestNearestPrefersEarlierDayOnTies(t *testing.T) {
	c := NewCache(nil, nil)
	c.Seed("USD", "ETH", date("2023-06-01"), decimal.NewFromInt(1800))
	c.Seed("USD", "ETH", date("2023-06-05"), decimal.NewFromInt(1900))

	// 2023-06-03 is exactly two days from both recorded prices.
	price, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-03"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(1800)))
}

func TestFetchErrorFallsBackToNearest(t *testing.T) {
	f := newCountingFetcher(map[string]decimal.Decimal{})
	f.failAt["2023-06-03"] = true
	c := NewCache(f, nil)
	c.Seed("USD", "ETH", date("2023-06-01"), decimal.NewFromInt(1800))

	price, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-03"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(1800)))
}

func TestPairsDoNotLeakIntoEachOther(t *testing.T) {
	c := NewCache(nil, nil)
	c.Seed("USD", "ETH", date("2023-06-01"), decimal.NewFromInt(1800))

	_, ok := c.Nearest(context.Background(), "USD", "BTC", date("2023-06-01"))
	require.False(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c := NewCache(nil, nil)
	c.Seed("USD", "ETH", date("2023-06-01"), decimal.RequireFromString("1800.55"))
	c.Seed("USD", "BTC", date("2023-06-02"), decimal.NewFromInt(27000))

	restored := NewCache(nil, nil)
	restored.Restore(c.Snapshot())

	price, ok := restored.Nearest(context.Background(), "USD", "ETH", date("2023-06-01"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.RequireFromString("1800.55")))

	price, ok = restored.Nearest(context.Background(), "USD", "BTC", date("2023-06-02"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(27000)))
}

func TestConcurrentColdLookupsFetchOnce(t *testing.T) {
	// No warm-up: every goroutine races on the unresolved day, and the
	// in-flight marker must collapse them into a single backend call.
	f := newCountingFetcher(map[string]decimal.Decimal{
		"2023-06-01": decimal.NewFromInt(1800),
	})
	f.delay = 50 * time.Millisecond
	c := NewCache(f, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			price, ok := c.Nearest(context.Background(), "USD", "ETH", date("2023-06-01"))
			if !ok || !price.Equal(decimal.NewFromInt(1800)) {
				t.Error("unexpected concurrent lookup result")
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, f.callsFor("2023-06-01"))
}
