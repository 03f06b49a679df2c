package coinswitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// Config assembles an Exchange. CoinSwitch authenticates every call,
// including market data, so credentials are required for all use.
type Config struct {
	Options *interfaces.ConnectorOptions

	// Venue selects the exchange CoinSwitch routes orders to; defaults to
	// coinswitchx.
	Venue string

	Tracker interfaces.OrderTracker
	Logger  logging.Logger

	// overrides for tests
	BaseURL string
	HTTP    common.HTTPClient
}

// Exchange is the CoinSwitch PRO trading adapter.
type Exchange struct {
	opts     *interfaces.ConnectorOptions
	venue    string
	auth     *Auth
	rest     *common.RESTClient
	symbols  symbols.Store
	tracker  interfaces.OrderTracker
	balances *interfaces.BalanceTracker
	clock    *common.MillisecondClock
	logger   logging.Logger
}

// New creates a CoinSwitch exchange adapter.
func New(cfg Config) (*Exchange, error) {
	opts := cfg.Options
	if opts == nil {
		opts = interfaces.NewConnectorOptions()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = interfaces.NewMemoryOrderTracker()
	}

	venue := cfg.Venue
	if venue == "" {
		venue = DefaultVenue
	}
	if !venueSupported(venue) {
		return nil, fmt.Errorf("unsupported coinswitch venue %q", venue)
	}

	clock := common.NewMillisecondClock(nil)

	var auth *Auth
	if opts.APIKey != "" || opts.APISecret != "" {
		var err error
		auth, err = NewAuth(opts.APIKey, opts.APISecret, clock)
		if err != nil {
			return nil, err
		}
	}

	limits, err := ratelimit.NewRegistry(RateLimitRules())
	if err != nil {
		return nil, fmt.Errorf("coinswitch rate limit table: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = RESTURL
	}

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = common.NewHTTPClient(&common.ClientConfig{
			Timeout:    opts.HTTPTimeout,
			MaxRetries: 3,
			RetryDelay: time.Second,
			RateLimit:  ratelimit.Rate{Limit: 20, Interval: time.Second},
			Logger:     logger,
		})
	}

	ex := &Exchange{
		opts:     opts,
		venue:    venue,
		auth:     auth,
		tracker:  tracker,
		balances: interfaces.NewBalanceTracker(),
		clock:    clock,
		logger:   logger,
	}
	restCfg := common.RESTConfig{
		BaseURL: baseURL,
		HTTP:    httpClient,
		Limits:  limits,
		Logger:  logger,
	}
	if auth != nil {
		restCfg.Auth = auth
	}
	ex.rest = common.NewRESTClient(restCfg)
	return ex, nil
}

// Name implements interfaces.ExchangeAdapter.
func (e *Exchange) Name() string { return Name }

// RateLimitRules implements interfaces.ExchangeAdapter.
func (e *Exchange) RateLimitRules() []ratelimit.Rule { return RateLimitRules() }

// Venue returns the venue orders are routed to.
func (e *Exchange) Venue() string { return e.venue }

// Tracker returns the order tracker the adapter folds updates into.
func (e *Exchange) Tracker() interfaces.OrderTracker { return e.tracker }

// NewClientOrderID generates an order id under the CoinSwitch prefix.
func (e *Exchange) NewClientOrderID() string {
	return interfaces.NewClientOrderID(OrderIDPrefix)
}

func (e *Exchange) requireAuth() error {
	if e.auth == nil {
		return interfaces.ErrInvalidCredentials
	}
	return nil
}

// Ticker is one symbol's 24h statistics from the all-pairs feed.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	BidPrice  decimal.Decimal
	AskPrice  decimal.Decimal
}

type tickerInfo struct {
	LastPrice json.Number `json:"lastPrice"`
	BidPrice  json.Number `json:"bidPrice"`
	AskPrice  json.Number `json:"askPrice"`
}

// fetchAllTickers loads the all-pairs ticker dictionary for the venue.
func (e *Exchange) fetchAllTickers(ctx context.Context) (map[string]tickerInfo, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	var query common.Params
	query.Add("exchange", e.venue)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          TickerAllPath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching all-pairs tickers: %w", err)
	}
	var tickers map[string]tickerInfo
	if err := json.Unmarshal(unwrapData(body), &tickers); err != nil {
		return nil, fmt.Errorf("decoding all-pairs tickers: %w", err)
	}
	return tickers, nil
}

// RefreshSymbolMap rebuilds the symbol map from the all-pairs ticker feed,
// whose keys are the venue's native symbols.
func (e *Exchange) RefreshSymbolMap(ctx context.Context) error {
	tickers, err := e.fetchAllTickers(ctx)
	if err != nil {
		return err
	}
	builder := symbols.NewBuilder()
	for sym := range tickers {
		pair, ok := pairFromSymbol(sym)
		if !ok {
			e.logger.Debug("skipping unparseable symbol",
				logging.String("exchange", Name),
				logging.String("symbol", sym),
			)
			continue
		}
		builder.Add(symbols.Market{
			Symbol:      sym,
			Base:        pair.Base,
			Quote:       pair.Quote,
			Status:      "active",
			MinQuantity: minOrderSize,
			MaxQuantity: maxOrderSize,
		})
	}
	e.symbols.Swap(builder.Build())
	return nil
}

// SymbolMap returns the current symbol map, fetching it on first use.
func (e *Exchange) SymbolMap(ctx context.Context) (*symbols.Map, error) {
	m := e.symbols.Load()
	if m.Len() > 0 {
		return m, nil
	}
	if err := e.RefreshSymbolMap(ctx); err != nil {
		return nil, err
	}
	return e.symbols.Load(), nil
}

// The ticker feed carries no sizing filters, so the map uses fixed bounds.
var (
	minOrderSize = decimal.New(1, -8)
	maxOrderSize = decimal.NewFromInt(1_000_000_000)
)

// PlaceOrder implements interfaces.ExchangeAdapter. CoinSwitch executes
// limit orders only; the venue rides along in the payload.
func (e *Exchange) PlaceOrder(ctx context.Context, req interfaces.OrderRequest) (interfaces.OrderAck, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderAck{}, err
	}
	symbolMap, err := e.SymbolMap(ctx)
	if err != nil {
		return interfaces.OrderAck{}, err
	}
	symbol, ok := symbolMap.Symbol(req.Pair)
	if !ok {
		return interfaces.OrderAck{}, interfaces.NewPairError(req.Pair.String(), "pair not listed", interfaces.ErrUnknownPair)
	}

	price, _ := req.Price.Float64()
	quantity, _ := req.Quantity.Float64()
	payload := map[string]any{
		"side":            string(req.Side),
		"symbol":          symbol,
		"type":            orderTypeLimit,
		"price":           price,
		"quantity":        quantity,
		"exchange":        e.venue,
		"client_order_id": req.ClientOrderID,
	}

	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          OrderPath,
		JSONBody:      payload,
		Authenticated: true,
	})
	if err != nil {
		// 503 means the exchange may have accepted the order without
		// confirming it; track it and let reconciliation resolve the id.
		if common.IsStatus(err, http.StatusServiceUnavailable) {
			ack := interfaces.OrderAck{
				ClientOrderID:   req.ClientOrderID,
				ExchangeOrderID: interfaces.UnknownExchangeOrderID,
				Timestamp:       time.Now(),
				Unconfirmed:     true,
			}
			e.trackPlacement(req, ack)
			return ack, nil
		}
		return interfaces.OrderAck{}, fmt.Errorf("placing order %s: %w", req.ClientOrderID, err)
	}

	order := decodeObject(unwrapData(body))
	ack := interfaces.OrderAck{
		ClientOrderID:   req.ClientOrderID,
		ExchangeOrderID: stringField(order, "order_id"),
		Timestamp:       msToTime(numberField(order, "created_time")),
	}
	e.trackPlacement(req, ack)
	return ack, nil
}

func (e *Exchange) trackPlacement(req interfaces.OrderRequest, ack interfaces.OrderAck) {
	e.tracker.Track(interfaces.TrackedOrder{
		ClientOrderID:   req.ClientOrderID,
		ExchangeOrderID: ack.ExchangeOrderID,
		Pair:            req.Pair,
		Side:            req.Side,
		Type:            req.Type,
		Price:           req.Price,
		Quantity:        req.Quantity,
		State:           interfaces.StatePendingCreate,
		CreatedAt:       ack.Timestamp,
		UpdatedAt:       ack.Timestamp,
	})
}

// CancelOrder implements interfaces.ExchangeAdapter. Cancellation is a
// DELETE on the order endpoint keyed by the exchange order id.
func (e *Exchange) CancelOrder(ctx context.Context, order interfaces.TrackedOrder) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return fmt.Errorf("cancel %s: %w", order.ClientOrderID, interfaces.ErrOrderNotTracked)
	}
	_, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodDelete,
		Path:          OrderPath,
		JSONBody:      map[string]any{"order_id": order.ExchangeOrderID},
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", order.ClientOrderID, err)
	}
	return nil
}

// fetchOrder retrieves the order detail object for an exchange order id.
func (e *Exchange) fetchOrder(ctx context.Context, exchangeOrderID string) (map[string]json.RawMessage, error) {
	var query common.Params
	query.Add("order_id", exchangeOrderID)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          OrderPath,
		Query:         query,
		LimitID:       orderStatusLimitID,
		Authenticated: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeObject(unwrapData(body)), nil
}

// OrderStatus implements interfaces.ExchangeAdapter.
func (e *Exchange) OrderStatus(ctx context.Context, order interfaces.TrackedOrder) (interfaces.OrderUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderUpdate{}, err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return interfaces.OrderUpdate{}, fmt.Errorf("status of %s: %w", order.ClientOrderID, interfaces.ErrOrderNotTracked)
	}
	detail, err := e.fetchOrder(ctx, order.ExchangeOrderID)
	if err != nil {
		return interfaces.OrderUpdate{}, fmt.Errorf("fetching status of %s: %w", order.ClientOrderID, err)
	}

	rawStatus := stringField(detail, "status")
	update := interfaces.OrderUpdate{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.ExchangeOrderID,
		Pair:            order.Pair,
		State:           orderStates.Resolve(rawStatus, order.State),
		RawStatus:       rawStatus,
		Timestamp:       msToTime(numberField(detail, "updated_time")),
	}
	if executed, err := parseNumber(numberField(detail, "executed_qty")); err == nil {
		update.FilledQuantity = executed
	}
	return update, nil
}

// TradeUpdatesForOrder implements interfaces.ExchangeAdapter. Fills ride
// along on the order detail as its "trades" list.
func (e *Exchange) TradeUpdatesForOrder(ctx context.Context, order interfaces.TrackedOrder) ([]interfaces.TradeUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return nil, nil
	}
	detail, err := e.fetchOrder(ctx, order.ExchangeOrderID)
	if err != nil {
		return nil, fmt.Errorf("fetching trades of %s: %w", order.ClientOrderID, err)
	}

	raw, ok := detail["trades"]
	if !ok {
		return nil, nil
	}
	var trades []orderTrade
	if err := json.Unmarshal(raw, &trades); err != nil {
		return nil, fmt.Errorf("decoding trades of %s: %w", order.ClientOrderID, err)
	}

	updates := make([]interfaces.TradeUpdate, 0, len(trades))
	for _, t := range trades {
		updates = append(updates, t.toUpdate(order))
	}
	return updates, nil
}

type orderTrade struct {
	TradeID  json.Number `json:"trade_id"`
	Quantity json.Number `json:"qty"`
	Price    json.Number `json:"price"`
	Fee      json.Number `json:"fee"`
	FeeAsset string      `json:"fee_asset"`
	Time     json.Number `json:"time"`
}

func (t orderTrade) toUpdate(order interfaces.TrackedOrder) interfaces.TradeUpdate {
	price, _ := parseNumber(t.Price)
	qty, _ := parseNumber(t.Quantity)
	fee, _ := parseNumber(t.Fee)
	return interfaces.TradeUpdate{
		TradeID:         t.TradeID.String(),
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.ExchangeOrderID,
		Pair:            order.Pair,
		Side:            order.Side,
		Price:           price,
		Quantity:        qty,
		Fee:             fee,
		FeeAsset:        t.FeeAsset,
		Timestamp:       msToTime(t.Time),
	}
}

// Sizing filters are not published, so the rules derive from the quote
// asset: INR books quote in paise while crypto books quote to 8 places.
var (
	inrTick        = decimal.New(1, -2)
	cryptoTick     = decimal.New(1, -8)
	inrNotional    = decimal.NewFromInt(1)
	cryptoNotional = decimal.New(1, -4)
)

// TradingRules implements interfaces.ExchangeAdapter.
func (e *Exchange) TradingRules(ctx context.Context) (map[symbols.Pair]interfaces.TradingRule, error) {
	if err := e.RefreshSymbolMap(ctx); err != nil {
		return nil, err
	}
	m := e.symbols.Load()
	rules := make(map[symbols.Pair]interfaces.TradingRule, m.Len())
	for _, pair := range m.Pairs() {
		rule := interfaces.TradingRule{
			Pair:            pair,
			MinOrderSize:    minOrderSize,
			PriceIncrement:  cryptoTick,
			AmountIncrement: cryptoTick,
			MinNotional:     cryptoNotional,
		}
		if pair.Quote == "INR" {
			rule.PriceIncrement = inrTick
			rule.MinNotional = inrNotional
		}
		rules[pair] = rule
	}
	return rules, nil
}

// UpdateBalances implements interfaces.ExchangeAdapter. The portfolio
// endpoint returns a full snapshot, so assets absent from the response are
// evicted.
func (e *Exchange) UpdateBalances(ctx context.Context) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          PortfolioPath,
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("fetching portfolio: %w", err)
	}

	entries, err := portfolioEntries(unwrapData(body))
	if err != nil {
		return fmt.Errorf("decoding portfolio: %w", err)
	}
	balances := make([]interfaces.Balance, 0, len(entries))
	for _, entry := range entries {
		if b, ok := entry.toBalance(); ok {
			balances = append(balances, b)
		}
	}
	e.balances.SetAll(balances)
	return nil
}

// portfolioEntry tolerates the field aliases the portfolio payload uses
// across venues.
type portfolioEntry struct {
	Currency   string      `json:"currency"`
	Coin       string      `json:"coin"`
	Main       json.Number `json:"main_balance"`
	Free       json.Number `json:"free"`
	Available  json.Number `json:"available"`
	Blocked    json.Number `json:"blocked_balance_order"`
	Locked     json.Number `json:"locked"`
	BlockedAlt json.Number `json:"blocked"`
}

func (p portfolioEntry) toBalance() (interfaces.Balance, bool) {
	asset := strings.ToUpper(firstNonEmpty(p.Currency, p.Coin))
	if asset == "" {
		return interfaces.Balance{}, false
	}
	available, _ := parseNumber(pickNumber(p.Main, p.Free, p.Available))
	locked, _ := parseNumber(pickNumber(p.Blocked, p.Locked, p.BlockedAlt))
	return interfaces.Balance{
		Asset:     asset,
		Available: available,
		Locked:    locked,
	}, true
}

// portfolioEntries flattens the portfolio payload, which arrives either as
// a list of entries or as a dictionary keyed by asset.
func portfolioEntries(data json.RawMessage) ([]portfolioEntry, error) {
	var list []portfolioEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, err
	}
	entries := make([]portfolioEntry, 0, len(keyed))
	for asset, raw := range keyed {
		var entry portfolioEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			// plain number means the whole balance is available
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				continue
			}
			entry.Main = n
		}
		entry.Currency = asset
		entries = append(entries, entry)
	}
	return entries, nil
}

// Balances implements interfaces.ExchangeAdapter.
func (e *Exchange) Balances() []interfaces.Balance { return e.balances.All() }

// BalanceFor returns the tracked balance for an asset.
func (e *Exchange) BalanceFor(asset string) (interfaces.Balance, bool) {
	return e.balances.Get(asset)
}

// IsOrderNotFound implements interfaces.ExchangeAdapter.
func (e *Exchange) IsOrderNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// Tickers returns 24h statistics for every listed symbol, keyed by pair.
func (e *Exchange) Tickers(ctx context.Context) (map[symbols.Pair]Ticker, error) {
	raw, err := e.fetchAllTickers(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make(map[symbols.Pair]Ticker, len(raw))
	for sym, info := range raw {
		pair, ok := pairFromSymbol(sym)
		if !ok {
			continue
		}
		last, _ := parseNumber(info.LastPrice)
		bid, _ := parseNumber(info.BidPrice)
		ask, _ := parseNumber(info.AskPrice)
		tickers[pair] = Ticker{
			Symbol:    sym,
			LastPrice: last,
			BidPrice:  bid,
			AskPrice:  ask,
		}
	}
	return tickers, nil
}

// LastTradePrices implements interfaces.LastTradePriceProvider.
func (e *Exchange) LastTradePrices(ctx context.Context) (map[symbols.Pair]float64, error) {
	tickers, err := e.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]float64, len(tickers))
	for pair, ticker := range tickers {
		if price, _ := ticker.LastPrice.Float64(); price > 0 {
			prices[pair] = price
		}
	}
	return prices, nil
}

// OrderBook fetches a depth snapshot for the pair.
func (e *Exchange) OrderBook(ctx context.Context, pair symbols.Pair) (bids, asks []interfaces.BookLevel, err error) {
	if err := e.requireAuth(); err != nil {
		return nil, nil, err
	}
	symbol, err := e.nativeSymbol(ctx, pair)
	if err != nil {
		return nil, nil, err
	}
	var query common.Params
	query.Add("exchange", e.venue)
	query.Add("symbol", symbol)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          DepthPath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetching depth for %s: %w", pair, err)
	}

	var depth struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}
	if err := json.Unmarshal(unwrapData(body), &depth); err != nil {
		return nil, nil, fmt.Errorf("decoding depth for %s: %w", pair, err)
	}
	return levelsFromPairs(depth.Bids, true), levelsFromPairs(depth.Asks, false), nil
}

// PublicTrades fetches recent trades for the pair.
func (e *Exchange) PublicTrades(ctx context.Context, pair symbols.Pair) ([]interfaces.BookMessage, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	symbol, err := e.nativeSymbol(ctx, pair)
	if err != nil {
		return nil, err
	}
	var query common.Params
	query.Add("exchange", e.venue)
	query.Add("symbol", symbol)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          TradesPath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching trades for %s: %w", pair, err)
	}

	var trades []publicTrade
	if err := json.Unmarshal(unwrapData(body), &trades); err != nil {
		return nil, fmt.Errorf("decoding trades for %s: %w", pair, err)
	}
	messages := make([]interfaces.BookMessage, 0, len(trades))
	for _, t := range trades {
		messages = append(messages, t.toMessage(pair))
	}
	return messages, nil
}

// publicTrade tolerates both the single-letter and the long field forms.
type publicTrade struct {
	ID        json.Number `json:"id"`
	IDShort   json.Number `json:"t"`
	Price     json.Number `json:"price"`
	PShort    json.Number `json:"p"`
	Quantity  json.Number `json:"qty"`
	QuantAlt  json.Number `json:"quantity"`
	QShort    json.Number `json:"q"`
	Time      json.Number `json:"time"`
	EventTime json.Number `json:"E"`
	IsMaker   bool        `json:"m"`
}

func (t publicTrade) toMessage(pair symbols.Pair) interfaces.BookMessage {
	price, _ := parseNumber(pickNumber(t.PShort, t.Price))
	qty, _ := parseNumber(pickNumber(t.QShort, t.Quantity, t.QuantAlt))
	ts := msToTime(pickNumber(t.EventTime, t.Time))
	return interfaces.BookMessage{
		Kind:          interfaces.BookTrade,
		Pair:          pair,
		UpdateID:      ts.UnixMilli(),
		TradeID:       pickNumber(t.IDShort, t.ID).String(),
		TradePrice:    price,
		TradeQuantity: qty,
		IsBuyerMaker:  t.IsMaker,
		Timestamp:     ts,
	}
}

// ValidateKeys checks the configured credentials against the exchange.
func (e *Exchange) ValidateKeys(ctx context.Context) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	_, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          ValidateKeysPath,
		Authenticated: true,
	})
	return err
}

// Fee is a maker/taker fee pair, after discounts.
type Fee struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// TradingFees fetches per-asset maker/taker fees for the venue.
func (e *Exchange) TradingFees(ctx context.Context) (map[string]Fee, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	var query common.Params
	query.Add("exchange", e.venue)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          TradingFeePath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching trading fees: %w", err)
	}

	var perVenue map[string]map[string]struct {
		Maker json.Number `json:"maker_fee_after_discount"`
		Taker json.Number `json:"taker_fee_after_discount"`
	}
	if err := json.Unmarshal(unwrapData(body), &perVenue); err != nil {
		return nil, fmt.Errorf("decoding trading fees: %w", err)
	}

	fees := make(map[string]Fee)
	for asset, info := range perVenue[strings.ToLower(e.venue)] {
		maker, _ := parseNumber(info.Maker)
		taker, _ := parseNumber(info.Taker)
		fees[asset] = Fee{Maker: maker, Taker: taker}
	}
	return fees, nil
}

// ProcessStreamEvent implements interfaces.ExchangeAdapter. Events arrive
// from the polling user stream as full order and portfolio snapshots.
func (e *Exchange) ProcessStreamEvent(event interfaces.StreamEvent) {
	switch event.Kind {
	case interfaces.EventOrderUpdate:
		for _, item := range splitPayload(event.Data) {
			e.processOrderEvent(item)
		}
	case interfaces.EventBalanceUpdate:
		for _, item := range splitPayload(event.Data) {
			e.processBalanceEvent(item)
		}
	default:
		e.logger.Debug("unrecognized user stream event",
			logging.String("exchange", Name),
			logging.String("channel", event.Channel),
		)
	}
}

type streamOrder struct {
	ClientOrderID string      `json:"client_order_id"`
	OrderID       json.Number `json:"order_id"`
	Status        string      `json:"status"`
	UpdatedTime   json.Number `json:"updated_time"`
	ExecutedQty   json.Number `json:"executed_qty"`
}

func (e *Exchange) processOrderEvent(data json.RawMessage) {
	var order streamOrder
	if err := json.Unmarshal(data, &order); err != nil {
		e.logger.Warn("malformed order update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	current, ok := e.tracker.Get(order.ClientOrderID)
	if !ok {
		return
	}
	update := interfaces.OrderUpdate{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.OrderID.String(),
		Pair:            current.Pair,
		State:           orderStates.Resolve(order.Status, current.State),
		RawStatus:       order.Status,
		Timestamp:       msToTime(order.UpdatedTime),
	}
	if executed, err := parseNumber(order.ExecutedQty); err == nil {
		update.FilledQuantity = executed
	}
	e.tracker.ApplyUpdate(update)
}

func (e *Exchange) processBalanceEvent(data json.RawMessage) {
	var entry portfolioEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		e.logger.Warn("malformed balance update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	if b, ok := entry.toBalance(); ok {
		e.balances.Set(b)
	}
}

// helpers

func (e *Exchange) nativeSymbol(ctx context.Context, pair symbols.Pair) (string, error) {
	symbolMap, err := e.SymbolMap(ctx)
	if err != nil {
		return "", err
	}
	symbol, ok := symbolMap.Symbol(pair)
	if !ok {
		// unlisted pairs fall back to the venue's slash form
		return pair.Base + "/" + pair.Quote, nil
	}
	return symbol, nil
}

func venueSupported(venue string) bool {
	for _, v := range SupportedVenues {
		if v == venue {
			return true
		}
	}
	return false
}

// pairFromSymbol parses a native symbol such as "BTC/INR" or "BTC-INR".
func pairFromSymbol(sym string) (symbols.Pair, bool) {
	var parts []string
	switch {
	case strings.Contains(sym, "/"):
		parts = strings.SplitN(sym, "/", 2)
	case strings.Contains(sym, "-"):
		parts = strings.SplitN(sym, "-", 2)
	default:
		return symbols.Pair{}, false
	}
	if parts[0] == "" || parts[1] == "" {
		return symbols.Pair{}, false
	}
	return symbols.NewPair(parts[0], parts[1]), true
}

// unwrapData strips the {"data": ...} envelope; payloads without one pass
// through untouched.
func unwrapData(body json.RawMessage) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return body
}

func decodeObject(raw json.RawMessage) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return map[string]json.RawMessage{}
	}
	return obj
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func numberField(obj map[string]json.RawMessage, key string) json.Number {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.Number(s)
	}
	return ""
}

func splitPayload(data json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}
	if len(data) == 0 {
		return nil
	}
	return []json.RawMessage{data}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickNumber(values ...json.Number) json.Number {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseNumber(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}

func msToTime(n json.Number) time.Time {
	if n == "" {
		return time.Now()
	}
	f, err := n.Float64()
	if err != nil || f <= 0 {
		return time.Now()
	}
	if f < 1e12 { // seconds
		return time.UnixMilli(int64(f * 1000))
	}
	return time.UnixMilli(int64(f))
}

// levelsFromPairs converts [price, quantity] tuples, which may be strings
// or numbers, into sorted book levels.
func levelsFromPairs(side [][]json.RawMessage, descending bool) []interfaces.BookLevel {
	levels := make([]interfaces.BookLevel, 0, len(side))
	for _, entry := range side {
		if len(entry) < 2 {
			continue
		}
		price, err := rawDecimal(entry[0])
		if err != nil {
			continue
		}
		quantity, err := rawDecimal(entry[1])
		if err != nil {
			continue
		}
		levels = append(levels, interfaces.BookLevel{Price: price, Quantity: quantity})
	}
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels
}

func rawDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
