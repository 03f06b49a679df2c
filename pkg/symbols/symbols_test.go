package symbols

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func market(symbol, base, quote, status string, min, max string) Market {
	return Market{
		Symbol:      symbol,
		Base:        base,
		Quote:       quote,
		Status:      status,
		MinQuantity: decimal.RequireFromString(min),
		MaxQuantity: decimal.RequireFromString(max),
	}
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("btc-usdt")
	require.NoError(t, err)
	assert.Equal(t, Pair{Base: "BTC", Quote: "USDT"}, pair)
	assert.Equal(t, "BTC-USDT", pair.String())

	for _, bad := range []string{"", "BTC", "BTC-", "-USDT"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestMarketTradable(t *testing.T) {
	tests := []struct {
		name     string
		market   Market
		tradable bool
	}{
		{"active", market("BTCUSDT", "BTC", "USDT", "active", "0.001", "100"), true},
		{"mixed case status", market("BTCUSDT", "BTC", "USDT", "Active", "0.001", "100"), true},
		{"inactive", market("BTCUSDT", "BTC", "USDT", "terminated", "0.001", "100"), false},
		{"negative min", market("BTCUSDT", "BTC", "USDT", "active", "-1", "100"), false},
		{"zero max", market("BTCUSDT", "BTC", "USDT", "active", "0.001", "0"), false},
		{"min above max", market("BTCUSDT", "BTC", "USDT", "active", "200", "100"), false},
		{"zero min allowed", market("BTCUSDT", "BTC", "USDT", "active", "0", "100"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.tradable, tt.market.Tradable())
		})
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	b := NewBuilder()
	assert.True(t, b.Add(market("BTCUSDT", "BTC", "USDT", "active", "0.001", "100")))
	assert.False(t, b.Add(market("BTCUSDT", "BTC", "INR", "active", "0.001", "100")), "duplicate native symbol")
	assert.False(t, b.Add(market("XBTUSDT", "BTC", "USDT", "active", "0.001", "100")), "duplicate pair")
	assert.True(t, b.Add(market("ETHUSDT", "ETH", "USDT", "active", "0.01", "1000")))

	m := b.Build()
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, b.Dropped())

	pair, ok := m.Pair("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, NewPair("BTC", "USDT"), pair)

	symbol, ok := m.Symbol(NewPair("ETH", "USDT"))
	require.True(t, ok)
	assert.Equal(t, "ETHUSDT", symbol)
}

func TestMapRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(market("btcinr", "BTC", "INR", "active", "0.0001", "10"))
	b.Add(market("ethinr", "ETH", "INR", "active", "0.001", "100"))
	m := b.Build()

	for _, pair := range m.Pairs() {
		symbol, ok := m.Symbol(pair)
		require.True(t, ok)
		back, ok := m.Pair(symbol)
		require.True(t, ok)
		assert.Equal(t, pair, back)
	}
}

func TestStoreSwap(t *testing.T) {
	var store Store
	assert.Equal(t, 0, store.Load().Len(), "zero value starts empty")

	b := NewBuilder()
	b.Add(market("BTCUSDT", "BTC", "USDT", "active", "0.001", "100"))
	built := b.Build()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Swap(built)
				_ = store.Load().Len()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Load().Len())
	store.Swap(nil)
	assert.Equal(t, 0, store.Load().Len())
}
