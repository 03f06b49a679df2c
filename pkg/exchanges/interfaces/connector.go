package interfaces

import (
	"context"
	"time"

	"github.com/veiloq/trading-connectors/pkg/ratelimit"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// ExchangeAdapter is the trading surface every exchange package implements.
//
// An adapter owns the exchange-specific request signing, payload shapes and
// response normalization, and exposes a uniform order/balance API. It does
// not own order lifecycle state: updates are reported through OrderUpdate
// and StreamEvent values and folded into whatever OrderTracker the host
// configured.
//
// Implementations should handle:
// - Authentication and request signing for the exchange
// - Rate limiting according to the exchange's published rules
// - Normalizing the exchange's heterogeneous response shapes
// - Error wrapping so callers can test for order-not-found conditions
type ExchangeAdapter interface {
	// Name returns the exchange identifier (e.g. "coindcx").
	Name() string

	// PlaceOrder submits a new order. When the exchange answers with HTTP
	// 503 the order is reported as accepted but unconfirmed: the ack
	// carries UnknownExchangeOrderID and the local clock timestamp, and the
	// caller is expected to resolve the true state through reconciliation.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// CancelOrder requests cancellation, keyed by the exchange order id
	// when known and the client order id otherwise. A nil error means the
	// exchange acknowledged the request, not that the order is gone.
	CancelOrder(ctx context.Context, order TrackedOrder) error

	// OrderStatus fetches the current state of a single order.
	OrderStatus(ctx context.Context, order TrackedOrder) (OrderUpdate, error)

	// TradeUpdatesForOrder fetches the fills recorded for an order.
	TradeUpdatesForOrder(ctx context.Context, order TrackedOrder) ([]TradeUpdate, error)

	// TradingRules fetches the per-pair order constraints derived from the
	// exchange's markets metadata, restricted to tradable markets.
	TradingRules(ctx context.Context) (map[symbols.Pair]TradingRule, error)

	// UpdateBalances refreshes the balance cache wholesale. Assets no
	// longer reported by the exchange are evicted locally.
	UpdateBalances(ctx context.Context) error

	// Balances returns the cached balances from the last refresh.
	Balances() []Balance

	// ProcessStreamEvent folds a user stream event into the adapter's
	// tracker and balance cache. Malformed payloads are logged and skipped.
	ProcessStreamEvent(event StreamEvent)

	// IsOrderNotFound reports whether err is the exchange's way of saying
	// the referenced order does not exist.
	IsOrderNotFound(err error) bool

	// RateLimitRules returns the declarative endpoint rate limit table the
	// adapter was built from.
	RateLimitRules() []ratelimit.Rule
}

// BookSource streams order book and public trade messages for a fixed set
// of pairs. Push-mode sources hold a websocket open; poll-mode sources
// snapshot on a fixed cadence. Run blocks until ctx is cancelled and always
// returns ctx's error.
type BookSource interface {
	Run(ctx context.Context, out chan<- BookMessage) error
}

// UserStreamSource streams private account events (order updates, trades,
// balance changes). Same lifecycle contract as BookSource.
type UserStreamSource interface {
	Run(ctx context.Context, out chan<- StreamEvent) error
}

// OrderTracker is the host-owned store of in-flight orders. Adapters and
// the reconciliation loop write into it; the host reads from it.
type OrderTracker interface {
	// Track registers a new order.
	Track(order TrackedOrder)

	// Get returns the order for a client order id.
	Get(clientOrderID string) (TrackedOrder, bool)

	// GetByExchangeID returns the order for an exchange order id.
	GetByExchangeID(exchangeOrderID string) (TrackedOrder, bool)

	// Active returns all orders not yet in a terminal state.
	Active() []TrackedOrder

	// ApplyUpdate folds an update into the tracked order, honoring the
	// no-regression rule for unrecognized states. It returns the updated
	// order, or false when the update references an unknown order.
	ApplyUpdate(update OrderUpdate) (TrackedOrder, bool)

	// Remove drops an order from the tracker.
	Remove(clientOrderID string)
}

// LastTradePriceProvider is implemented by adapters whose exchange exposes
// a ticker with last traded prices; the rate oracle uses it as a fallback
// when the order book has no quotes.
type LastTradePriceProvider interface {
	LastTradePrices(ctx context.Context) (map[symbols.Pair]float64, error)
}

// ConnectorOptions carries the credentials and tunables shared by all
// exchange adapters.
type ConnectorOptions struct {
	// APIKey is the authentication key for the exchange API.
	APIKey string

	// APISecret is the secret paired with the API key. Its format is
	// exchange-specific (shared HMAC secret or hex-encoded Ed25519 seed).
	APISecret string

	// HTTPTimeout bounds every REST call to the exchange.
	HTTPTimeout time.Duration

	// WSReconnectInterval is the wait before redialing a dropped stream.
	WSReconnectInterval time.Duration

	// WSHeartbeatInterval is the ping cadence on websocket connections.
	WSHeartbeatInterval time.Duration

	// PollInterval is the cadence of poll-mode data sources.
	PollInterval time.Duration
}

// NewConnectorOptions returns defaults matching the exchanges' documented
// limits: 15s HTTP timeout, 5s reconnect, 20s heartbeat, 5s polling.
func NewConnectorOptions() *ConnectorOptions {
	return &ConnectorOptions{
		HTTPTimeout:         15 * time.Second,
		WSReconnectInterval: 5 * time.Second,
		WSHeartbeatInterval: 20 * time.Second,
		PollInterval:        5 * time.Second,
	}
}
