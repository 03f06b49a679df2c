// Package coindcx implements the CoinDCX spot exchange adapter: HMAC-signed
// REST trading, push-mode order book and user streams over the shared
// socket endpoint, and symbol/rule mapping from the markets details feed.
package coindcx

import (
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

const (
	Name = "coindcx"

	RESTURL       = "https://api.coindcx.com"
	PublicRESTURL = "https://public.coindcx.com"
	WSSURL        = "wss://stream.coindcx.com"

	OrderIDPrefix = "haveli-"

	MarketsPath        = "/exchange/v1/markets"
	MarketsDetailsPath = "/exchange/v1/markets_details"
	OrderBookPath      = "/market_data/orderbook"
	TradeHistoryPath   = "/market_data/trade_history"
	CandlesPath        = "/market_data/candles"
	TickerPath         = "/exchange/ticker"

	UserBalancesPath    = "/exchange/v1/users/balances"
	CreateOrderPath     = "/exchange/v1/orders/create"
	OrderStatusPath     = "/exchange/v1/orders/status"
	CancelOrderPath     = "/exchange/v1/orders/cancel"
	CancelAllOrdersPath = "/exchange/v1/orders/cancel_all"
	ActiveOrdersPath    = "/exchange/v1/orders/active_orders"
	AccountTradesPath   = "/exchange/v1/orders/trade_history"
	OrderEditPath       = "/exchange/v1/orders/edit"

	// wire values for order placement
	orderTypeLimit  = "limit_order"
	orderTypeMarket = "market_order"

	// user stream event names
	eventOrderUpdate   = "order-update"
	eventBalanceUpdate = "balance-update"
	eventTradeUpdate   = "trade-update"

	// private channel joined with the signed payload
	privateChannel = "coindcx"

	orderNotFoundCode    = "404"
	orderNotFoundMessage = "Order not found"
)

// orderStates maps CoinDCX raw order statuses to normalized states.
var orderStates = interfaces.StateTable{
	"init":                interfaces.StatePendingCreate,
	"open":                interfaces.StateOpen,
	"filled":              interfaces.StateFilled,
	"partially_filled":    interfaces.StatePartiallyFilled,
	"cancelled":           interfaces.StateCanceled,
	"partially_cancelled": interfaces.StateCanceled,
	"rejected":            interfaces.StateFailed,
}

// RateLimitRules is the published per-endpoint request budget.
func RateLimitRules() []ratelimit.Rule {
	return []ratelimit.Rule{
		{ID: MarketsPath, Limit: 2000, Interval: time.Minute},
		{ID: MarketsDetailsPath, Limit: 2000, Interval: time.Minute},
		{ID: OrderBookPath, Limit: 2000, Interval: time.Minute},
		{ID: TradeHistoryPath, Limit: 2000, Interval: time.Minute},
		{ID: CandlesPath, Limit: 2000, Interval: time.Minute},
		{ID: TickerPath, Limit: 2000, Interval: time.Minute},
		{ID: UserBalancesPath, Limit: 2000, Interval: time.Minute},
		{ID: CreateOrderPath, Limit: 2000, Interval: time.Minute},
		{ID: OrderStatusPath, Limit: 2000, Interval: time.Minute},
		{ID: CancelOrderPath, Limit: 2000, Interval: time.Minute},
		{ID: CancelAllOrdersPath, Limit: 30, Interval: time.Minute},
		{ID: ActiveOrdersPath, Limit: 300, Interval: time.Minute},
		{ID: AccountTradesPath, Limit: 2000, Interval: time.Minute},
		{ID: OrderEditPath, Limit: 2000, Interval: time.Minute},
	}
}
