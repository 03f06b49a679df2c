// Package coinswitch implements the CoinSwitch PRO adapter: Ed25519-signed
// REST trading routed to one of the venues CoinSwitch aggregates, with
// poll-mode order book and user streams since the API exposes no public
// websocket feeds.
package coinswitch

import (
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

const (
	Name = "coinswitch"

	RESTURL = "https://coinswitch.co"

	OrderIDPrefix = "x-CS"

	PingPath         = "/trade/api/v2/ping"
	ServerTimePath   = "/trade/api/v2/time"
	ExchangeInfoPath = "/trade/api/v2/exchangePrecision"
	ActiveCoinsPath  = "/trade/api/v2/coins"
	TradeInfoPath    = "/trade/api/v2/tradeInfo"
	TickerPath       = "/trade/api/v2/24hr/ticker"
	TickerAllPath    = "/trade/api/v2/24hr/all-pairs/ticker"
	DepthPath        = "/trade/api/v2/depth"
	TradesPath       = "/trade/api/v2/trades"
	CandlesPath      = "/trade/api/v2/candles"

	OrderPath        = "/trade/api/v2/order"
	OrdersPath       = "/trade/api/v2/orders"
	PortfolioPath    = "/trade/api/v2/user/portfolio"
	ValidateKeysPath = "/trade/api/v2/validate/keys"
	TradingFeePath   = "/trade/api/v2/tradingFee"

	// wire value for order placement; CoinSwitch only executes limit orders
	orderTypeLimit = "limit"

	// shared rate limit pools
	poolRequestWeight = "REQUEST_WEIGHT"
	poolOrders        = "ORDERS"
	poolOrders24h     = "ORDERS_24HR"
	poolRawRequests   = "RAW_REQUESTS"

	// /trade/api/v2/order serves create (POST), cancel (DELETE) and status
	// (GET) under different budgets, so the status reads get their own
	// rule id.
	orderStatusLimitID = "GET " + OrderPath
)

// Venues CoinSwitch routes orders to; every private call carries the venue
// in its "exchange" parameter.
const (
	VenueCoinswitchX = "coinswitchx"
	VenueWazirX      = "wazirx"
	VenueC2C1        = "c2c1"
	VenueC2C2        = "c2c2"

	DefaultVenue = VenueCoinswitchX
)

// SupportedVenues lists the venues an adapter may be configured with.
var SupportedVenues = []string{VenueCoinswitchX, VenueWazirX, VenueC2C1, VenueC2C2}

// orderStates maps CoinSwitch raw order statuses to normalized states.
// CANCELLATION_RAISED and EXPIRATION_RAISED are transitional: the order is
// still live on the book until the exchange confirms the outcome.
var orderStates = interfaces.StateTable{
	"OPEN":                interfaces.StateOpen,
	"PARTIALLY_EXECUTED":  interfaces.StatePartiallyFilled,
	"EXECUTED":            interfaces.StateFilled,
	"CANCELLED":           interfaces.StateCanceled,
	"EXPIRED":             interfaces.StateFailed,
	"DISCARDED":           interfaces.StateFailed,
	"CANCELLATION_RAISED": interfaces.StateOpen,
	"EXPIRATION_RAISED":   interfaces.StateOpen,
}

const maxRequestsPerMinute = 10000

// RateLimitRules is the published request budget: four shared pools plus
// per-endpoint rules charging weights against them.
func RateLimitRules() []ratelimit.Rule {
	weighted := func(requestWeight int) []ratelimit.Weight {
		return []ratelimit.Weight{
			{ID: poolRequestWeight, Weight: requestWeight},
			{ID: poolRawRequests, Weight: 1},
		}
	}
	return []ratelimit.Rule{
		{ID: poolRequestWeight, Limit: 10000, Interval: time.Minute},
		{ID: poolOrders, Limit: 100, Interval: 10 * time.Second},
		{ID: poolOrders24h, Limit: 200000, Interval: 24 * time.Hour},
		{ID: poolRawRequests, Limit: 61000, Interval: 5 * time.Minute},

		{ID: PingPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(1)},
		{ID: ServerTimePath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(1)},
		{ID: ExchangeInfoPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(10)},
		{ID: ActiveCoinsPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(10)},
		{ID: TradeInfoPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(1)},
		{ID: TickerPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(4)},
		{ID: TickerAllPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(4)},
		{ID: DepthPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(10)},
		{ID: TradesPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(10)},
		{ID: CandlesPath, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(5)},

		{ID: OrderPath, Limit: 100, Interval: 10 * time.Second,
			Linked: []ratelimit.Weight{{ID: poolOrders, Weight: 1}}},
		{ID: orderStatusLimitID, Limit: maxRequestsPerMinute, Interval: time.Minute, Linked: weighted(4)},
		{ID: OrdersPath, Limit: 10000, Interval: 10 * time.Second},
		{ID: PortfolioPath, Limit: 5000, Interval: 10 * time.Second},
		{ID: ValidateKeysPath, Limit: maxRequestsPerMinute, Interval: time.Minute},
		{ID: TradingFeePath, Limit: maxRequestsPerMinute, Interval: time.Minute},
	}
}
