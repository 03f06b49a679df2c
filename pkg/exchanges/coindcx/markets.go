package coindcx

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// marketDetail is one entry of the markets details payload.
//
// CoinDCX names its fields from the quote currency's point of view:
// target_currency_short_name is the BASE asset and base_currency_short_name
// is the QUOTE asset. Conversions below apply that reversal.
type marketDetail struct {
	Symbol        string      `json:"symbol"`
	CoindcxName   string      `json:"coindcx_name"`
	Pair          string      `json:"pair"`
	QuoteCurrency string      `json:"base_currency_short_name"`
	BaseCurrency  string      `json:"target_currency_short_name"`
	Status        string      `json:"status"`
	MinQuantity   json.Number `json:"min_quantity"`
	MaxQuantity   json.Number `json:"max_quantity"`
	Step          json.Number `json:"step"`
	MinNotional   json.Number `json:"min_notional"`
	QuotePrec     *int        `json:"base_currency_precision"`
	BasePrec      *int        `json:"target_currency_precision"`
}

func (d marketDetail) nativeSymbol() string {
	if d.Symbol != "" {
		return d.Symbol
	}
	return d.CoindcxName
}

// toMarket converts the detail into a symbols.Market descriptor. Malformed
// quantity fields yield a non-tradable market rather than an error.
func (d marketDetail) toMarket() symbols.Market {
	market := symbols.Market{
		Symbol: d.nativeSymbol(),
		Base:   d.BaseCurrency,
		Quote:  d.QuoteCurrency,
		Status: d.Status,
	}
	min, err := parseNumber(d.MinQuantity)
	if err != nil {
		market.Status = "invalid"
		return market
	}
	max, err := parseNumber(d.MaxQuantity)
	if err != nil {
		market.Status = "invalid"
		return market
	}
	market.MinQuantity = min
	market.MaxQuantity = max
	return market
}

func parseNumber(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}

// buildSymbolMap builds the native symbol <-> pair bijection from a markets
// details payload.
func buildSymbolMap(details []marketDetail) *symbols.Map {
	builder := symbols.NewBuilder()
	for _, d := range details {
		builder.Add(d.toMarket())
	}
	return builder.Build()
}

// tradingRuleFromDetail derives the order constraints for one market.
// Price increment comes from the quote precision, amount increment from the
// step when positive and the base precision otherwise.
func tradingRuleFromDetail(d marketDetail, pair symbols.Pair) (interfaces.TradingRule, bool) {
	minSize, err := parseNumber(d.MinQuantity)
	if err != nil || !minSize.IsPositive() {
		return interfaces.TradingRule{}, false
	}
	maxSize, err := parseNumber(d.MaxQuantity)
	if err != nil {
		return interfaces.TradingRule{}, false
	}
	minNotional, err := parseNumber(d.MinNotional)
	if err != nil {
		minNotional = decimal.Zero
	}

	quotePrec := 8
	if d.QuotePrec != nil {
		quotePrec = *d.QuotePrec
	}
	basePrec := 8
	if d.BasePrec != nil {
		basePrec = *d.BasePrec
	}

	amountIncrement := decimal.New(1, int32(-basePrec))
	if step, err := parseNumber(d.Step); err == nil && step.IsPositive() {
		amountIncrement = step
	}

	return interfaces.TradingRule{
		Pair:            pair,
		MinOrderSize:    minSize,
		MaxOrderSize:    maxSize,
		PriceIncrement:  decimal.New(1, int32(-quotePrec)),
		AmountIncrement: amountIncrement,
		MinNotional:     minNotional,
	}, true
}

// PublicPair renders the pair in the form the public market-data endpoints
// and stream channels use, e.g. "B-BTC_USDT". The default exchange code is
// "B"; markets details may carry an explicit pair which callers should
// prefer when present.
func PublicPair(pair symbols.Pair) string {
	return "B-" + pair.Base + "_" + pair.Quote
}

// pairFromPublic parses the "B-BTC_USDT" channel form back to a pair.
func pairFromPublic(s string) (symbols.Pair, bool) {
	_, rest, ok := strings.Cut(s, "-")
	if !ok {
		return symbols.Pair{}, false
	}
	base, quote, ok := strings.Cut(rest, "_")
	if !ok || base == "" || quote == "" {
		return symbols.Pair{}, false
	}
	return symbols.NewPair(base, quote), true
}
