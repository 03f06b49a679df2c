// Package wazirx implements the WazirX spot exchange adapter: HMAC-signed
// form-encoded REST trading with poll-mode order book and user streams,
// and the public tickers feed used for symbol discovery and rates.
package wazirx

import (
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

const (
	Name = "wazirx"

	RESTURL = "https://api.wazirx.com"

	OrderIDPrefix = "hbot-"

	TickersPath      = "/api/v2/tickers"
	DepthPath        = "/api/v2/depth"
	ExchangeInfoPath = "/api/v3/exchangeInfo"

	AccountPath    = "/api/v3/account"
	OrderPath      = "/api/v3/order"
	OpenOrdersPath = "/api/v3/openOrders"
	MyTradesPath   = "/api/v3/myTrades"

	// shared rate limit pools
	poolRequestWeight = "REQUEST_WEIGHT"
	poolOrders        = "ORDERS"

	orderNotFoundMessage = "Order does not exist"
)

// orderStates maps WazirX raw order statuses to normalized states.
var orderStates = interfaces.StateTable{
	"NEW":              interfaces.StateOpen,
	"FILLED":           interfaces.StateFilled,
	"PARTIALLY_FILLED": interfaces.StatePartiallyFilled,
	"CANCELED":         interfaces.StateCanceled,
	"REJECTED":         interfaces.StateFailed,
}

// quoteSuffixes resolves ticker keys such as "btcinr" when the payload
// carries no explicit base/quote units.
var quoteSuffixes = []string{"USDT", "USDC", "INR", "BTC", "ETH", "BUSD"}

const maxRequestsPerMinute = 1200

// RateLimitRules is the published request budget. Endpoints absent from
// the table pass through the registry uncharged.
func RateLimitRules() []ratelimit.Rule {
	return []ratelimit.Rule{
		{ID: poolRequestWeight, Limit: 1200, Interval: time.Minute},
		{ID: poolOrders, Limit: 100, Interval: 10 * time.Second},

		{ID: TickersPath, Limit: maxRequestsPerMinute, Interval: time.Minute,
			Linked: []ratelimit.Weight{{ID: poolRequestWeight, Weight: 1}}},
		{ID: DepthPath, Limit: maxRequestsPerMinute, Interval: time.Minute,
			Linked: []ratelimit.Weight{{ID: poolRequestWeight, Weight: 5}}},
		{ID: AccountPath, Limit: maxRequestsPerMinute, Interval: time.Minute,
			Linked: []ratelimit.Weight{{ID: poolRequestWeight, Weight: 10}}},
		{ID: OrderPath, Limit: maxRequestsPerMinute, Interval: time.Minute,
			Linked: []ratelimit.Weight{{ID: poolRequestWeight, Weight: 1}, {ID: poolOrders, Weight: 1}}},
	}
}
