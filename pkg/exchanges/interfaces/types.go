package interfaces

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderState is the normalized lifecycle state of an order. Each exchange
// maps its raw status strings onto these through a StateTable.
type OrderState int

const (
	StateUnknown OrderState = iota
	StatePendingCreate
	StateOpen
	StatePartiallyFilled
	StateFilled
	StateCanceled
	StateFailed
)

var stateNames = map[OrderState]string{
	StateUnknown:         "unknown",
	StatePendingCreate:   "pending_create",
	StateOpen:            "open",
	StatePartiallyFilled: "partially_filled",
	StateFilled:          "filled",
	StateCanceled:        "canceled",
	StateFailed:          "failed",
}

func (s OrderState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state is final: no further updates are
// expected for the order.
func (s OrderState) Terminal() bool {
	return s == StateFilled || s == StateCanceled || s == StateFailed
}

// StateTable maps an exchange's raw status strings to normalized states.
type StateTable map[string]OrderState

// Resolve maps a raw status onto a normalized state. A status the table
// does not know keeps the current state: a missing mapping must never
// regress an order that already progressed.
func (t StateTable) Resolve(raw string, current OrderState) OrderState {
	if state, ok := t[raw]; ok {
		return state
	}
	return current
}

// UnknownExchangeOrderID marks an order the exchange accepted (or may have
// accepted) without returning its id, such as a placement answered with
// HTTP 503. Reconciliation resolves the real id later.
const UnknownExchangeOrderID = "UNKNOWN"

// OrderRequest describes an order to be placed.
type OrderRequest struct {
	ClientOrderID string
	Pair          symbols.Pair
	Side          OrderSide
	Type          OrderType
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

// OrderAck is the exchange's acknowledgement of a placement.
type OrderAck struct {
	ClientOrderID   string
	ExchangeOrderID string
	Timestamp       time.Time

	// Unconfirmed is set when the exchange could not confirm the placement
	// (HTTP 503) but may still have executed it.
	Unconfirmed bool
}

// TrackedOrder is an in-flight order as held by an OrderTracker.
type TrackedOrder struct {
	ClientOrderID   string
	ExchangeOrderID string
	Pair            symbols.Pair
	Side            OrderSide
	Type            OrderType
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	State           OrderState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderUpdate reports a change in an order's state, from either the user
// stream or a REST status poll.
type OrderUpdate struct {
	ClientOrderID   string
	ExchangeOrderID string
	Pair            symbols.Pair

	// State is the normalized state; RawStatus preserves the exchange's
	// original string for logging.
	State          OrderState
	RawStatus      string
	FilledQuantity decimal.Decimal
	Timestamp      time.Time
}

// TradeUpdate reports a single fill.
type TradeUpdate struct {
	TradeID         string
	ClientOrderID   string
	ExchangeOrderID string
	Pair            symbols.Pair
	Side            OrderSide
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Fee             decimal.Decimal
	FeeAsset        string
	IsMaker         bool
	Timestamp       time.Time
}

// Balance is the funds held in one asset.
type Balance struct {
	Asset     string
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// Total returns available plus locked funds.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Locked)
}

// TradingRule holds the per-pair order constraints derived from an
// exchange's markets metadata.
type TradingRule struct {
	Pair            symbols.Pair
	MinOrderSize    decimal.Decimal
	MaxOrderSize    decimal.Decimal
	PriceIncrement  decimal.Decimal
	AmountIncrement decimal.Decimal
	MinNotional     decimal.Decimal
}

// BookKind discriminates the BookMessage union.
type BookKind int

const (
	// BookSnapshot carries the full depth; downstream replaces its book.
	BookSnapshot BookKind = iota
	// BookDiff carries incremental depth changes.
	BookDiff
	// BookTrade carries a single public trade.
	BookTrade
)

func (k BookKind) String() string {
	switch k {
	case BookSnapshot:
		return "snapshot"
	case BookDiff:
		return "diff"
	case BookTrade:
		return "trade"
	default:
		return "unknown"
	}
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// BookMessage is one order book or public trade event. Kind selects which
// fields are populated: Bids/Asks for depth messages, the Trade fields for
// trades. UpdateID comes from the exchange sequence number when it provides
// one, otherwise it is synthesized from the event timestamp.
type BookMessage struct {
	Kind     BookKind
	Pair     symbols.Pair
	UpdateID int64

	// Depth fields. Bids descend by price, asks ascend.
	Bids []BookLevel
	Asks []BookLevel

	// Trade fields.
	TradeID       string
	TradePrice    decimal.Decimal
	TradeQuantity decimal.Decimal
	IsBuyerMaker  bool

	Timestamp time.Time
}

// StreamEventKind discriminates the StreamEvent union.
type StreamEventKind int

const (
	EventOrderUpdate StreamEventKind = iota
	EventTradeUpdate
	EventBalanceUpdate
	// EventUnrecognized carries a non-empty payload the source could not
	// classify; forwarded rather than dropped so hosts can log it.
	EventUnrecognized
)

func (k StreamEventKind) String() string {
	switch k {
	case EventOrderUpdate:
		return "order_update"
	case EventTradeUpdate:
		return "trade_update"
	case EventBalanceUpdate:
		return "balance_update"
	case EventUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// StreamEvent is one private user stream event. Data holds the raw
// exchange payload; the adapter's ProcessStreamEvent decodes it.
type StreamEvent struct {
	Kind      StreamEventKind
	Channel   string
	Data      json.RawMessage
	Timestamp time.Time
}

// BookHandler processes book messages delivered by a BookSource.
type BookHandler func(BookMessage)

// StreamHandler processes user stream events.
type StreamHandler func(StreamEvent)
