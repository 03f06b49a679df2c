package rateoracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/exchanges/coinswitch"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// CoinSwitchSource derives rates from the CoinSwitch all-pairs ticker.
// Every CoinSwitch market-data call is signed, so the adapter must hold
// credentials.
type CoinSwitchSource struct {
	exchange *coinswitch.Exchange
}

// NewCoinSwitchSource wraps an adapter.
func NewCoinSwitchSource(exchange *coinswitch.Exchange) *CoinSwitchSource {
	return &CoinSwitchSource{exchange: exchange}
}

// Name implements Source.
func (s *CoinSwitchSource) Name() string { return coinswitch.Name }

// Prices implements Source. When a ticker carries no usable top of book
// the last traded price stands in for the mid.
func (s *CoinSwitchSource) Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]decimal.Decimal)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.BidPrice, ticker.AskPrice); ok {
			prices[pair] = ba.Mid
		} else if ticker.LastPrice.IsPositive() {
			prices[pair] = ticker.LastPrice
		}
	}
	return prices, nil
}

// BidAskPrices implements Source.
func (s *CoinSwitchSource) BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	quotes := make(map[symbols.Pair]BidAsk)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.BidPrice, ticker.AskPrice); ok {
			quotes[pair] = ba
		}
	}
	return quotes, nil
}
