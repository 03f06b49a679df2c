package rateoracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/symbols"
)

func TestNewBidAskDerivesSpreadStatistics(t *testing.T) {
	ba, ok := NewBidAsk(decimal.RequireFromString("9.9"), decimal.RequireFromString("10.1"))
	require.True(t, ok)
	assert.Equal(t, "10", ba.Mid.String())
	assert.Equal(t, "0.2", ba.Spread.String())
	assert.Equal(t, "2", ba.SpreadPct.String())
}

func TestNewBidAskRejectsBadQuotes(t *testing.T) {
	_, ok := NewBidAsk(decimal.RequireFromString("10.1"), decimal.RequireFromString("9.9"))
	assert.False(t, ok, "crossed quotes are rejected")

	_, ok = NewBidAsk(decimal.Zero, decimal.RequireFromString("10"))
	assert.False(t, ok)

	_, ok = NewBidAsk(decimal.RequireFromString("10"), decimal.Zero)
	assert.False(t, ok)

	_, ok = NewBidAsk(decimal.RequireFromString("-1"), decimal.RequireFromString("1"))
	assert.False(t, ok)
}

func TestNewBidAskAcceptsTouchingQuotes(t *testing.T) {
	ba, ok := NewBidAsk(decimal.RequireFromString("10"), decimal.RequireFromString("10"))
	require.True(t, ok)
	assert.Equal(t, "10", ba.Mid.String())
	assert.True(t, ba.Spread.IsZero())
}

// fakeSource counts fetches so cache behavior is observable.
type fakeSource struct {
	calls int
	err   error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return map[symbols.Pair]decimal.Decimal{
		symbols.NewPair("BTC", "INR"): decimal.NewFromInt(int64(s.calls)),
	}, nil
}

func (s *fakeSource) BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ba, _ := NewBidAsk(decimal.RequireFromString("9.9"), decimal.RequireFromString("10.1"))
	return map[symbols.Pair]BidAsk{symbols.NewPair("BTC", "INR"): ba}, nil
}

func TestCacheServesFreshEntriesWithoutRefetch(t *testing.T) {
	source := &fakeSource{}
	now := time.Unix(1700000000, 0)
	cache := NewCache(source, WithClock(func() time.Time { return now }))

	first, err := cache.Prices(context.Background(), "INR")
	require.NoError(t, err)
	second, err := cache.Prices(context.Background(), "INR")
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, first, second)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	source := &fakeSource{}
	now := time.Unix(1700000000, 0)
	cache := NewCache(source, WithClock(func() time.Time { return now }))

	_, err := cache.Prices(context.Background(), "INR")
	require.NoError(t, err)

	now = now.Add(DefaultTTL + time.Second)
	_, err = cache.Prices(context.Background(), "INR")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheKeysByQuoteToken(t *testing.T) {
	source := &fakeSource{}
	now := time.Unix(1700000000, 0)
	cache := NewCache(source, WithClock(func() time.Time { return now }))

	_, err := cache.Prices(context.Background(), "INR")
	require.NoError(t, err)
	_, err = cache.Prices(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheSwallowsFetchErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("exchange down")}
	cache := NewCache(source)

	prices, err := cache.Prices(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, prices)

	quotes, err := cache.BidAskPrices(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestCacheFailuresAreNotCached(t *testing.T) {
	source := &fakeSource{err: errors.New("exchange down")}
	cache := NewCache(source)

	_, err := cache.Prices(context.Background(), "")
	require.NoError(t, err)

	source.err = nil
	prices, err := cache.Prices(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, prices, "recovery is picked up on the next call")
}

func TestCacheBidAskHasOwnEntries(t *testing.T) {
	source := &fakeSource{}
	now := time.Unix(1700000000, 0)
	cache := NewCache(source, WithClock(func() time.Time { return now }))

	_, err := cache.Prices(context.Background(), "INR")
	require.NoError(t, err)
	quotes, err := cache.BidAskPrices(context.Background(), "INR")
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls, "mid and bid/ask caches are independent")
	ba := quotes[symbols.NewPair("BTC", "INR")]
	assert.Equal(t, "10", ba.Mid.String())
}
