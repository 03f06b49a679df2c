// Package rateoracle provides per-venue rate sources: mid and bid/ask
// price maps derived from exchange ticker feeds, behind a shared TTL
// cache.
package rateoracle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// DefaultTTL is how long cached rate snapshots stay fresh.
const DefaultTTL = 30 * time.Second

// Source produces exchange rates. A quote token narrows the result to
// pairs quoted in that asset; the empty string returns every pair.
type Source interface {
	Name() string
	Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error)
	BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error)
}

// BidAsk is one pair's top-of-book quote with its derived statistics.
type BidAsk struct {
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Mid       decimal.Decimal
	Spread    decimal.Decimal
	SpreadPct decimal.Decimal
}

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// NewBidAsk derives mid, spread and spread percentage from a top-of-book
// quote. Non-positive or crossed (bid above ask) quotes are rejected.
func NewBidAsk(bid, ask decimal.Decimal) (BidAsk, bool) {
	if !bid.IsPositive() || !ask.IsPositive() || bid.GreaterThan(ask) {
		return BidAsk{}, false
	}
	mid := bid.Add(ask).Div(two)
	spread := ask.Sub(bid)
	return BidAsk{
		Bid:       bid,
		Ask:       ask,
		Mid:       mid,
		Spread:    spread,
		SpreadPct: spread.Div(mid).Mul(hundred),
	}, true
}

// matchesQuote reports whether the pair passes the quote-token filter.
func matchesQuote(pair symbols.Pair, quoteToken string) bool {
	return quoteToken == "" || pair.Quote == strings.ToUpper(quoteToken)
}

// Cache wraps a Source with a per-quote-token TTL cache. Fetch failures
// are logged and surface as an empty map so rate consumers degrade to
// stale-free rather than erroring.
type Cache struct {
	source Source
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time

	mu     sync.Mutex
	prices map[string]pricesEntry
	bidAsk map[string]bidAskEntry
}

type pricesEntry struct {
	at    time.Time
	value map[symbols.Pair]decimal.Decimal
}

type bidAskEntry struct {
	at    time.Time
	value map[symbols.Pair]BidAsk
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the default cache lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger overrides the default logger.
func WithLogger(logger logging.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the cache's time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache wraps a source with a TTL cache.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source: source,
		ttl:    DefaultTTL,
		logger: logging.NewLogger(),
		now:    time.Now,
		prices: make(map[string]pricesEntry),
		bidAsk: make(map[string]bidAskEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *Cache) Name() string { return c.source.Name() }

// Prices implements Source. A fetch error yields an empty map.
func (c *Cache) Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error) {
	c.mu.Lock()
	entry, ok := c.prices[quoteToken]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.at) < c.ttl {
		return entry.value, nil
	}

	value, err := c.source.Prices(ctx, quoteToken)
	if err != nil {
		c.logger.Warn("rate fetch failed",
			logging.String("source", c.source.Name()),
			logging.Error(err),
		)
		return map[symbols.Pair]decimal.Decimal{}, nil
	}

	c.mu.Lock()
	c.prices[quoteToken] = pricesEntry{at: c.now(), value: value}
	c.mu.Unlock()
	return value, nil
}

// BidAskPrices implements Source. A fetch error yields an empty map.
func (c *Cache) BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error) {
	c.mu.Lock()
	entry, ok := c.bidAsk[quoteToken]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.at) < c.ttl {
		return entry.value, nil
	}

	value, err := c.source.BidAskPrices(ctx, quoteToken)
	if err != nil {
		c.logger.Warn("bid/ask fetch failed",
			logging.String("source", c.source.Name()),
			logging.Error(err),
		)
		return map[symbols.Pair]BidAsk{}, nil
	}

	c.mu.Lock()
	c.bidAsk[quoteToken] = bidAskEntry{at: c.now(), value: value}
	c.mu.Unlock()
	return value, nil
}
