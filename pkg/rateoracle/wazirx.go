package rateoracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/exchanges/wazirx"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// WazirXSource derives rates from the WazirX public tickers endpoint.
type WazirXSource struct {
	exchange *wazirx.Exchange
}

// NewWazirXSource wraps an adapter; a nil adapter builds a public-only
// one.
func NewWazirXSource(exchange *wazirx.Exchange) (*WazirXSource, error) {
	if exchange == nil {
		var err error
		exchange, err = wazirx.New(wazirx.Config{})
		if err != nil {
			return nil, err
		}
	}
	return &WazirXSource{exchange: exchange}, nil
}

// Name implements Source.
func (s *WazirXSource) Name() string { return wazirx.Name }

// Prices implements Source.
func (s *WazirXSource) Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]decimal.Decimal)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.Buy, ticker.Sell); ok {
			prices[pair] = ba.Mid
		}
	}
	return prices, nil
}

// BidAskPrices implements Source.
func (s *WazirXSource) BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	quotes := make(map[symbols.Pair]BidAsk)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.Buy, ticker.Sell); ok {
			quotes[pair] = ba
		}
	}
	return quotes, nil
}
