package coindcx

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

// Config assembles an Exchange. Credentials may be left empty for
// market-data-only use; authenticated operations then fail with
// ErrInvalidCredentials.
type Config struct {
	Options *interfaces.ConnectorOptions
	Tracker interfaces.OrderTracker
	Logger  logging.Logger

	// overrides for tests
	BaseURL   string
	PublicURL string
	HTTP      common.HTTPClient
}

// Exchange is the CoinDCX trading adapter.
type Exchange struct {
	opts     *interfaces.ConnectorOptions
	auth     *Auth
	rest     *common.RESTClient
	public   *common.RESTClient
	symbols  symbols.Store
	tracker  interfaces.OrderTracker
	balances *interfaces.BalanceTracker
	clock    *common.MillisecondClock
	logger   logging.Logger
}

// New creates a CoinDCX exchange adapter.
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
		return nil, fmt.Errorf("coindcx rate limit table: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = RESTURL
	}
	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = PublicRESTURL
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
	ex.public = common.NewRESTClient(common.RESTConfig{
		BaseURL: publicURL,
		HTTP:    httpClient,
		Limits:  limits,
		Logger:  logger,
	})
	return ex, nil
}

// Name implements interfaces.ExchangeAdapter.
func (e *Exchange) Name() string { return Name }

// RateLimitRules implements interfaces.ExchangeAdapter.
func (e *Exchange) RateLimitRules() []ratelimit.Rule { return RateLimitRules() }

// Tracker returns the order tracker the adapter folds updates into.
func (e *Exchange) Tracker() interfaces.OrderTracker { return e.tracker }

// Auth returns the adapter's authenticator; nil when running without
// credentials.
func (e *Exchange) Auth() *Auth { return e.auth }

// NewClientOrderID generates an order id under the CoinDCX prefix.
func (e *Exchange) NewClientOrderID() string {
	return interfaces.NewClientOrderID(OrderIDPrefix)
}

func (e *Exchange) requireAuth() error {
	if e.auth == nil {
		return interfaces.ErrInvalidCredentials
	}
	return nil
}

// fetchMarketsDetails loads the markets details list from the REST host.
func (e *Exchange) fetchMarketsDetails(ctx context.Context) ([]marketDetail, error) {
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   MarketsDetailsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching markets details: %w", err)
	}
	var details []marketDetail
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decoding markets details: %w", err)
	}
	return details, nil
}

// RefreshSymbolMap rebuilds the symbol map from markets details and swaps
// it in atomically.
func (e *Exchange) RefreshSymbolMap(ctx context.Context) error {
	details, err := e.fetchMarketsDetails(ctx)
	if err != nil {
		return err
	}
	e.symbols.Swap(buildSymbolMap(details))
	e.logger.Info("symbol map refreshed",
		logging.String("exchange", Name),
		logging.Int("markets", e.symbols.Load().Len()),
	)
	return nil
}

// SymbolMap returns the current symbol map, loading it on first use.
func (e *Exchange) SymbolMap(ctx context.Context) (*symbols.Map, error) {
	if m := e.symbols.Load(); m.Len() > 0 {
		return m, nil
	}
	if err := e.RefreshSymbolMap(ctx); err != nil {
		return nil, err
	}
	return e.symbols.Load(), nil
}

// PlaceOrder implements interfaces.ExchangeAdapter.
func (e *Exchange) PlaceOrder(ctx context.Context, req interfaces.OrderRequest) (interfaces.OrderAck, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderAck{}, err
	}
	symap, err := e.SymbolMap(ctx)
	if err != nil {
		return interfaces.OrderAck{}, err
	}
	symbol, ok := symap.Symbol(req.Pair)
	if !ok {
		return interfaces.OrderAck{}, interfaces.NewPairError(req.Pair.String(), "no market for pair", interfaces.ErrUnknownPair)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = e.NewClientOrderID()
	}

	payload := map[string]any{
		"market":          symbol,
		"side":            string(req.Side),
		"total_quantity":  req.Quantity.InexactFloat64(),
		"order_type":      wireOrderType(req.Type),
		"client_order_id": clientID,
	}
	if req.Type == interfaces.TypeLimit {
		payload["price_per_unit"] = req.Price.InexactFloat64()
	}

	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          CreateOrderPath,
		JSONBody:      payload,
		Authenticated: true,
	})
	if err != nil {
		// A 503 means the exchange may have accepted the order without
		// telling us. Report it as placed with an unknown id and let
		// reconciliation find the truth.
		if common.IsStatus(err, http.StatusServiceUnavailable) {
			ack := interfaces.OrderAck{
				ClientOrderID:   clientID,
				ExchangeOrderID: interfaces.UnknownExchangeOrderID,
				Timestamp:       time.Now(),
				Unconfirmed:     true,
			}
			e.trackPlacement(req, ack)
			return ack, nil
		}
		return interfaces.OrderAck{}, fmt.Errorf("placing order on %s: %w", symbol, err)
	}

	order := firstOrderPayload(body)
	ack := interfaces.OrderAck{
		ClientOrderID:   clientID,
		ExchangeOrderID: stringField(order, "id"),
		Timestamp:       msToTime(numberField(order, "created_at")),
	}
	if ack.ExchangeOrderID == "" {
		ack.ExchangeOrderID = clientID
	}
	e.trackPlacement(req, ack)
	return ack, nil
}

func (e *Exchange) trackPlacement(req interfaces.OrderRequest, ack interfaces.OrderAck) {
	e.tracker.Track(interfaces.TrackedOrder{
		ClientOrderID:   ack.ClientOrderID,
		ExchangeOrderID: ack.ExchangeOrderID,
		Pair:            req.Pair,
		Side:            req.Side,
		Type:            req.Type,
		Price:           req.Price,
		Quantity:        req.Quantity,
		State:           interfaces.StatePendingCreate,
		CreatedAt:       ack.Timestamp,
	})
}

// CancelOrder implements interfaces.ExchangeAdapter. A nil error means the
// exchange returned a response, which CoinDCX treats as acceptance.
func (e *Exchange) CancelOrder(ctx context.Context, order interfaces.TrackedOrder) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	payload := orderKeyPayload(order)
	_, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          CancelOrderPath,
		JSONBody:      payload,
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("canceling order %s: %w", order.ClientOrderID, err)
	}
	return nil
}

// OrderStatus implements interfaces.ExchangeAdapter.
func (e *Exchange) OrderStatus(ctx context.Context, order interfaces.TrackedOrder) (interfaces.OrderUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderUpdate{}, err
	}
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          OrderStatusPath,
		JSONBody:      orderKeyPayload(order),
		Authenticated: true,
	})
	if err != nil {
		return interfaces.OrderUpdate{}, fmt.Errorf("order status for %s: %w", order.ClientOrderID, err)
	}

	var status struct {
		ID            string      `json:"id"`
		Status        string      `json:"status"`
		UpdatedAt     json.Number `json:"updated_at"`
		TotalQuantity json.Number `json:"total_quantity"`
		RemainingQty  json.Number `json:"remaining_quantity"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return interfaces.OrderUpdate{}, fmt.Errorf("decoding order status: %w", err)
	}

	update := interfaces.OrderUpdate{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: status.ID,
		Pair:            order.Pair,
		State:           orderStates.Resolve(status.Status, order.State),
		RawStatus:       status.Status,
		Timestamp:       msToTime(status.UpdatedAt),
	}
	if total, err := parseNumber(status.TotalQuantity); err == nil && total.IsPositive() {
		if remaining, err := parseNumber(status.RemainingQty); err == nil {
			update.FilledQuantity = total.Sub(remaining)
		}
	}
	return update, nil
}

// TradeUpdatesForOrder implements interfaces.ExchangeAdapter. CoinDCX has
// no per-order fills endpoint; the account trade history is fetched for the
// order's market and filtered by exchange order id.
func (e *Exchange) TradeUpdatesForOrder(ctx context.Context, order interfaces.TrackedOrder) ([]interfaces.TradeUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return nil, nil
	}
	symap, err := e.SymbolMap(ctx)
	if err != nil {
		return nil, err
	}
	symbol, ok := symap.Symbol(order.Pair)
	if !ok {
		return nil, interfaces.NewPairError(order.Pair.String(), "no market for pair", interfaces.ErrUnknownPair)
	}

	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodPost,
		Path:   AccountTradesPath,
		JSONBody: map[string]any{
			"symbol": symbol,
			"limit":  100,
		},
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("trade history for %s: %w", symbol, err)
	}

	var trades []accountTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decoding trade history: %w", err)
	}

	var updates []interfaces.TradeUpdate
	for _, trade := range trades {
		if trade.OrderID != order.ExchangeOrderID {
			continue
		}
		updates = append(updates, trade.toUpdate(order))
	}
	return updates, nil
}

type accountTrade struct {
	ID        json.Number `json:"id"`
	OrderID   string      `json:"order_id"`
	Price     json.Number `json:"price"`
	Quantity  json.Number `json:"quantity"`
	FeeAmount json.Number `json:"fee_amount"`
	Symbol    string      `json:"symbol"`
	Timestamp json.Number `json:"timestamp"`
}

func (t accountTrade) toUpdate(order interfaces.TrackedOrder) interfaces.TradeUpdate {
	price, _ := parseNumber(t.Price)
	qty, _ := parseNumber(t.Quantity)
	fee, _ := parseNumber(t.FeeAmount)
	return interfaces.TradeUpdate{
		TradeID:         t.ID.String(),
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: t.OrderID,
		Pair:            order.Pair,
		Side:            order.Side,
		Price:           price,
		Quantity:        qty,
		Fee:             fee,
		FeeAsset:        order.Pair.Quote,
		Timestamp:       msToTime(t.Timestamp),
	}
}

// TradingRules implements interfaces.ExchangeAdapter.
func (e *Exchange) TradingRules(ctx context.Context) (map[symbols.Pair]interfaces.TradingRule, error) {
	details, err := e.fetchMarketsDetails(ctx)
	if err != nil {
		return nil, err
	}
	e.symbols.Swap(buildSymbolMap(details))
	symap := e.symbols.Load()

	rules := make(map[symbols.Pair]interfaces.TradingRule)
	for _, d := range details {
		pair, ok := symap.Pair(d.nativeSymbol())
		if !ok {
			continue
		}
		rule, ok := tradingRuleFromDetail(d, pair)
		if !ok {
			e.logger.Debug("skipping market with unusable rule",
				logging.String("exchange", Name),
				logging.String("symbol", d.nativeSymbol()),
			)
			continue
		}
		rules[pair] = rule
	}
	return rules, nil
}

// UpdateBalances implements interfaces.ExchangeAdapter. The cache is
// replaced wholesale; assets the exchange stopped reporting disappear.
func (e *Exchange) UpdateBalances(ctx context.Context) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          UserBalancesPath,
		JSONBody:      map[string]any{},
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("fetching balances: %w", err)
	}

	entries, err := balanceEntries(body)
	if err != nil {
		return err
	}
	balances := make([]interfaces.Balance, 0, len(entries))
	for _, entry := range entries {
		if entry.Currency == "" {
			continue
		}
		available, _ := parseNumber(entry.Balance)
		locked, _ := parseNumber(entry.LockedBalance)
		balances = append(balances, interfaces.Balance{
			Asset:     entry.Currency,
			Available: available,
			Locked:    locked,
		})
	}
	e.balances.SetAll(balances)
	return nil
}

type balanceEntry struct {
	Currency      string      `json:"currency"`
	Balance       json.Number `json:"balance"`
	LockedBalance json.Number `json:"locked_balance"`
}

// balanceEntries tolerates both the bare list and the wrapped
// {"balances": [...]} response shapes.
func balanceEntries(body json.RawMessage) ([]balanceEntry, error) {
	var entries []balanceEntry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}
	var wrapped struct {
		Balances []balanceEntry `json:"balances"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding balances: %w", err)
	}
	return wrapped.Balances, nil
}

// Balances implements interfaces.ExchangeAdapter.
func (e *Exchange) Balances() []interfaces.Balance {
	return e.balances.All()
}

// BalanceFor returns the cached balance for one asset.
func (e *Exchange) BalanceFor(asset string) (interfaces.Balance, bool) {
	return e.balances.Get(asset)
}

// IsOrderNotFound implements interfaces.ExchangeAdapter.
func (e *Exchange) IsOrderNotFound(err error) bool {
	apiErr, ok := common.AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.Code == orderNotFoundCode ||
		strings.Contains(apiErr.Message, orderNotFoundMessage)
}

// LastTradePrices implements interfaces.LastTradePriceProvider using the
// last_price column of markets details.
func (e *Exchange) LastTradePrices(ctx context.Context) (map[symbols.Pair]float64, error) {
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   MarketsDetailsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching markets details: %w", err)
	}
	var details []struct {
		marketDetail
		LastPrice json.Number `json:"last_price"`
		Last      json.Number `json:"last"`
	}
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decoding markets details: %w", err)
	}

	symap, err := e.SymbolMap(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]float64)
	for _, d := range details {
		pair, ok := symap.Pair(d.nativeSymbol())
		if !ok {
			continue
		}
		n := d.LastPrice
		if n == "" {
			n = d.Last
		}
		price, err := n.Float64()
		if err != nil || price <= 0 {
			continue
		}
		prices[pair] = price
	}
	return prices, nil
}

// Ticker is one entry of the public ticker feed.
type Ticker struct {
	Symbol string
	Last   decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

// Tickers fetches the public ticker feed, keyed by pair. Markets absent
// from the symbol map are dropped.
func (e *Exchange) Tickers(ctx context.Context) (map[symbols.Pair]Ticker, error) {
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   TickerPath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching ticker: %w", err)
	}
	var raw []struct {
		Market    string      `json:"market"`
		Bid       json.Number `json:"bid"`
		Ask       json.Number `json:"ask"`
		LastPrice json.Number `json:"last_price"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding ticker: %w", err)
	}

	symap, err := e.SymbolMap(ctx)
	if err != nil {
		return nil, err
	}
	tickers := make(map[symbols.Pair]Ticker, len(raw))
	for _, entry := range raw {
		pair, ok := symap.Pair(entry.Market)
		if !ok {
			continue
		}
		last, _ := parseNumber(entry.LastPrice)
		bid, _ := parseNumber(entry.Bid)
		ask, _ := parseNumber(entry.Ask)
		tickers[pair] = Ticker{
			Symbol: entry.Market,
			Last:   last,
			Bid:    bid,
			Ask:    ask,
		}
	}
	return tickers, nil
}

// OrderBook fetches a depth snapshot from the public market-data host.
// Bids are returned descending by price, asks ascending.
func (e *Exchange) OrderBook(ctx context.Context, pair symbols.Pair) (bids, asks []interfaces.BookLevel, err error) {
	var query common.Params
	query.Add("pair", PublicPair(pair))
	body, err := e.public.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   OrderBookPath,
		Query:  query,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetching order book for %s: %w", pair, err)
	}

	var book struct {
		Bids map[string]json.Number `json:"bids"`
		Asks map[string]json.Number `json:"asks"`
	}
	if err := json.Unmarshal(body, &book); err != nil {
		return nil, nil, fmt.Errorf("decoding order book: %w", err)
	}
	return levelsFromMap(book.Bids, true), levelsFromMap(book.Asks, false), nil
}

// PublicTrades fetches recent public trades for a pair.
func (e *Exchange) PublicTrades(ctx context.Context, pair symbols.Pair, limit int) ([]interfaces.BookMessage, error) {
	var query common.Params
	query.Add("pair", PublicPair(pair))
	if limit > 0 {
		query.Add("limit", fmt.Sprintf("%d", limit))
	}
	body, err := e.public.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   TradeHistoryPath,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching trades for %s: %w", pair, err)
	}

	var raw []tradeFrame
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding trades: %w", err)
	}
	messages := make([]interfaces.BookMessage, 0, len(raw))
	for _, frame := range raw {
		messages = append(messages, frame.toMessage(pair))
	}
	return messages, nil
}

// Candle is one OHLCV entry from the public candles endpoint.
type Candle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// Candles fetches OHLCV history for a pair. Interval uses the exchange's
// notation ("1m", "5m", "1h", "1d").
func (e *Exchange) Candles(ctx context.Context, pair symbols.Pair, interval string, limit int) ([]Candle, error) {
	var query common.Params
	query.Add("pair", PublicPair(pair))
	query.Add("interval", interval)
	if limit > 0 {
		query.Add("limit", fmt.Sprintf("%d", limit))
	}
	body, err := e.public.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   CandlesPath,
		Query:  query,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", pair, err)
	}

	var raw []struct {
		OpenTime  json.Number `json:"time"`
		Open      json.Number `json:"open"`
		High      json.Number `json:"high"`
		Low       json.Number `json:"low"`
		Close     json.Number `json:"close"`
		Volume    json.Number `json:"volume"`
		CloseTime json.Number `json:"close_time"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding candles: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, c := range raw {
		open, _ := parseNumber(c.Open)
		high, _ := parseNumber(c.High)
		low, _ := parseNumber(c.Low)
		closePrice, _ := parseNumber(c.Close)
		volume, _ := parseNumber(c.Volume)
		candles = append(candles, Candle{
			OpenTime:  msToTime(c.OpenTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: msToTime(c.CloseTime),
		})
	}
	return candles, nil
}

// ProcessStreamEvent implements interfaces.ExchangeAdapter. Payloads may be
// a single object or a list of them; both shapes fold the same way.
func (e *Exchange) ProcessStreamEvent(event interfaces.StreamEvent) {
	switch event.Kind {
	case interfaces.EventOrderUpdate:
		for _, item := range splitPayload(event.Data) {
			e.processOrderEvent(item)
		}
	case interfaces.EventTradeUpdate:
		for _, item := range splitPayload(event.Data) {
			e.processTradeEvent(item)
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

// streamOrder covers both the long and the single-letter field forms
// CoinDCX uses across its stream payloads.
type streamOrder struct {
	ClientOrderID  string      `json:"client_order_id"`
	ClientShort    string      `json:"c"`
	ID             json.Number `json:"id"`
	OrderShort     json.Number `json:"o"`
	Status         string      `json:"status"`
	UpdatedAt      json.Number `json:"updated_at"`
	TotalQuantity  json.Number `json:"total_quantity"`
	RemainingQty   json.Number `json:"remaining_quantity"`
}

func (e *Exchange) processOrderEvent(data json.RawMessage) {
	var order streamOrder
	if err := json.Unmarshal(data, &order); err != nil {
		e.logger.Warn("malformed order update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	clientID := order.ClientOrderID
	if clientID == "" {
		clientID = order.ClientShort
	}
	exchangeID := order.ID.String()
	if exchangeID == "" {
		exchangeID = order.OrderShort.String()
	}

	current, ok := e.tracker.Get(clientID)
	if !ok {
		return
	}
	update := interfaces.OrderUpdate{
		ClientOrderID:   clientID,
		ExchangeOrderID: exchangeID,
		Pair:            current.Pair,
		State:           orderStates.Resolve(order.Status, current.State),
		RawStatus:       order.Status,
		Timestamp:       msToTime(order.UpdatedAt),
	}
	if total, err := parseNumber(order.TotalQuantity); err == nil && total.IsPositive() {
		if remaining, err := parseNumber(order.RemainingQty); err == nil {
			update.FilledQuantity = total.Sub(remaining)
		}
	}
	e.tracker.ApplyUpdate(update)
}

type streamTrade struct {
	ClientOrderID string      `json:"client_order_id"`
	ClientShort   string      `json:"c"`
	OrderID       json.Number `json:"order_id"`
	OrderShort    json.Number `json:"o"`
	Price         json.Number `json:"price"`
	PriceShort    json.Number `json:"p"`
	Quantity      json.Number `json:"quantity"`
	QtyShort      json.Number `json:"q"`
	Fee           json.Number `json:"fee_amount"`
	FeeShort      json.Number `json:"f"`
	TradeID       json.Number `json:"id"`
	TradeShort    json.Number `json:"t"`
	Timestamp     json.Number `json:"timestamp"`
	TimeShort     json.Number `json:"T"`
	IsMaker       bool        `json:"m"`
}

func (e *Exchange) processTradeEvent(data json.RawMessage) {
	var trade streamTrade
	if err := json.Unmarshal(data, &trade); err != nil {
		e.logger.Warn("malformed trade update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	clientID := firstNonEmpty(trade.ClientShort, trade.ClientOrderID)
	order, ok := e.tracker.Get(clientID)
	if !ok {
		return
	}

	price, _ := parseNumber(pickNumber(trade.PriceShort, trade.Price))
	qty, _ := parseNumber(pickNumber(trade.QtyShort, trade.Quantity))

	// fills accumulate on the tracked order
	e.tracker.ApplyUpdate(interfaces.OrderUpdate{
		ClientOrderID:   clientID,
		ExchangeOrderID: firstNonEmpty(trade.OrderShort.String(), trade.OrderID.String()),
		Pair:            order.Pair,
		FilledQuantity:  order.FilledQuantity.Add(qty),
		Timestamp:       msToTime(pickNumber(trade.TimeShort, trade.Timestamp)),
	})

	e.logger.Debug("trade fill",
		logging.String("exchange", Name),
		logging.String("client_order_id", clientID),
		logging.String("price", price.String()),
		logging.String("quantity", qty.String()),
	)
}

type streamBalance struct {
	Currency      string      `json:"currency"`
	AssetShort    string      `json:"a"`
	Balance       json.Number `json:"balance"`
	FreeShort     json.Number `json:"f"`
	LockedBalance json.Number `json:"locked_balance"`
	LockedShort   json.Number `json:"l"`
}

func (e *Exchange) processBalanceEvent(data json.RawMessage) {
	var bal streamBalance
	if err := json.Unmarshal(data, &bal); err != nil {
		e.logger.Warn("malformed balance update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	asset := firstNonEmpty(bal.Currency, bal.AssetShort)
	if asset == "" {
		return
	}
	available, _ := parseNumber(pickNumber(bal.Balance, bal.FreeShort))
	locked, _ := parseNumber(pickNumber(bal.LockedBalance, bal.LockedShort))
	e.balances.Set(interfaces.Balance{
		Asset:     asset,
		Available: available,
		Locked:    locked,
	})
}

// helpers

func wireOrderType(t interfaces.OrderType) string {
	if t == interfaces.TypeMarket {
		return orderTypeMarket
	}
	return orderTypeLimit
}

func orderKeyPayload(order interfaces.TrackedOrder) map[string]any {
	if order.ExchangeOrderID != "" && order.ExchangeOrderID != interfaces.UnknownExchangeOrderID {
		return map[string]any{"id": order.ExchangeOrderID}
	}
	return map[string]any{"client_order_id": order.ClientOrderID}
}

// firstOrderPayload unwraps the create-order response, which arrives as
// {"orders": [...]}, a bare list, or a single object depending on the day.
func firstOrderPayload(body json.RawMessage) map[string]json.RawMessage {
	var wrapped struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Orders) > 0 {
		return decodeObject(wrapped.Orders[0])
	}
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return decodeObject(list[0])
	}
	return decodeObject(body)
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
	return ""
}

// splitPayload flattens a payload that may be a single object or a list.
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

// msToTime converts an epoch value in milliseconds (or seconds, for values
// small enough) to a time. Empty or unparseable values yield the current
// time: stream payloads omit timestamps often enough that zero times would
// poison order UpdatedAt tracking.
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

func levelsFromMap(side map[string]json.Number, descending bool) []interfaces.BookLevel {
	levels := make([]interfaces.BookLevel, 0, len(side))
	for priceStr, qty := range side {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		quantity, err := parseNumber(qty)
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
