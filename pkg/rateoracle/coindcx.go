package rateoracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/exchanges/coindcx"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// CoinDCXSource derives rates from the CoinDCX public ticker feed through
// a credential-less exchange adapter.
type CoinDCXSource struct {
	exchange *coindcx.Exchange
}

// NewCoinDCXSource wraps an adapter; a nil adapter builds a public-only
// one.
func NewCoinDCXSource(exchange *coindcx.Exchange) (*CoinDCXSource, error) {
	if exchange == nil {
		var err error
		exchange, err = coindcx.New(coindcx.Config{})
		if err != nil {
			return nil, err
		}
	}
	return &CoinDCXSource{exchange: exchange}, nil
}

// Name implements Source.
func (s *CoinDCXSource) Name() string { return coindcx.Name }

// Prices implements Source.
func (s *CoinDCXSource) Prices(ctx context.Context, quoteToken string) (map[symbols.Pair]decimal.Decimal, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]decimal.Decimal)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.Bid, ticker.Ask); ok {
			prices[pair] = ba.Mid
		}
	}
	return prices, nil
}

// BidAskPrices implements Source.
func (s *CoinDCXSource) BidAskPrices(ctx context.Context, quoteToken string) (map[symbols.Pair]BidAsk, error) {
	tickers, err := s.exchange.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	quotes := make(map[symbols.Pair]BidAsk)
	for pair, ticker := range tickers {
		if !matchesQuote(pair, quoteToken) {
			continue
		}
		if ba, ok := NewBidAsk(ticker.Bid, ticker.Ask); ok {
			quotes[pair] = ba
		}
	}
	return quotes, nil
}
