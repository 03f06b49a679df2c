package wazirx

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
	BaseURL string
	HTTP    common.HTTPClient
}

// Exchange is the WazirX trading adapter.
type Exchange struct {
	opts     *interfaces.ConnectorOptions
	auth     *Auth
	rest     *common.RESTClient
	symbols  symbols.Store
	tracker  interfaces.OrderTracker
	balances *interfaces.BalanceTracker
	clock    *common.MillisecondClock
	logger   logging.Logger
}

// New creates a WazirX exchange adapter.
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
		return nil, fmt.Errorf("wazirx rate limit table: %w", err)
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

// Tracker returns the order tracker the adapter folds updates into.
func (e *Exchange) Tracker() interfaces.OrderTracker { return e.tracker }

// NewClientOrderID generates an order id under the WazirX prefix.
func (e *Exchange) NewClientOrderID() string {
	return interfaces.NewClientOrderID(OrderIDPrefix)
}

func (e *Exchange) requireAuth() error {
	if e.auth == nil {
		return interfaces.ErrInvalidCredentials
	}
	return nil
}

// NativeSymbol renders a pair in WazirX's form: lowercase, no separator.
func NativeSymbol(pair symbols.Pair) string {
	return strings.ToLower(pair.Base + pair.Quote)
}

// exchangeInfo carries the symbol list with its sizing filters.
type exchangeInfo struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string         `json:"symbol"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Status     string         `json:"status"`
	Filters    []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType  string      `json:"filterType"`
	TickSize    json.Number `json:"tickSize"`
	MinQty      json.Number `json:"minQty"`
	MaxQty      json.Number `json:"maxQty"`
	StepSize    json.Number `json:"stepSize"`
	MinNotional json.Number `json:"minNotional"`
}

func (s symbolInfo) filter(types ...string) (symbolFilter, bool) {
	for _, f := range s.Filters {
		for _, t := range types {
			if f.FilterType == t {
				return f, true
			}
		}
	}
	return symbolFilter{}, false
}

func (e *Exchange) fetchExchangeInfo(ctx context.Context) (exchangeInfo, error) {
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   ExchangeInfoPath,
	})
	if err != nil {
		return exchangeInfo{}, fmt.Errorf("fetching exchange info: %w", err)
	}
	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return exchangeInfo{}, fmt.Errorf("decoding exchange info: %w", err)
	}
	return info, nil
}

// RefreshSymbolMap rebuilds the symbol map from exchange info and swaps it
// in atomically.
func (e *Exchange) RefreshSymbolMap(ctx context.Context) error {
	info, err := e.fetchExchangeInfo(ctx)
	if err != nil {
		return err
	}
	builder := symbols.NewBuilder()
	for _, s := range info.Symbols {
		if s.Symbol == "" || s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		market := symbols.Market{
			Symbol:      strings.ToLower(s.Symbol),
			Base:        s.BaseAsset,
			Quote:       s.QuoteAsset,
			Status:      marketStatus(s.Status),
			MinQuantity: decimal.Zero,
			MaxQuantity: defaultMaxQty,
		}
		if lot, ok := s.filter("LOT_SIZE"); ok {
			if min, err := parseNumber(lot.MinQty); err == nil {
				market.MinQuantity = min
			}
			if max, err := parseNumber(lot.MaxQty); err == nil && max.IsPositive() {
				market.MaxQuantity = max
			}
		}
		builder.Add(market)
	}
	e.symbols.Swap(builder.Build())
	return nil
}

// WazirX reports tradable symbols with status "trading"; absent statuses
// are treated as live since the legacy payloads omit the field.
func marketStatus(raw string) string {
	switch strings.ToLower(raw) {
	case "", "trading", "active":
		return "active"
	default:
		return strings.ToLower(raw)
	}
}

var defaultMaxQty = decimal.NewFromInt(1_000_000_000)

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

// TradingRules implements interfaces.ExchangeAdapter. Rules derive from
// the PRICE_FILTER, LOT_SIZE and MIN_NOTIONAL filters on each symbol.
func (e *Exchange) TradingRules(ctx context.Context) (map[symbols.Pair]interfaces.TradingRule, error) {
	info, err := e.fetchExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	rules := make(map[symbols.Pair]interfaces.TradingRule)
	for _, s := range info.Symbols {
		if s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		if marketStatus(s.Status) != "active" {
			continue
		}
		pair := symbols.NewPair(s.BaseAsset, s.QuoteAsset)
		rule := interfaces.TradingRule{Pair: pair, MaxOrderSize: defaultMaxQty}
		if price, ok := s.filter("PRICE_FILTER"); ok {
			if tick, err := parseNumber(price.TickSize); err == nil {
				rule.PriceIncrement = tick
			}
		}
		if lot, ok := s.filter("LOT_SIZE"); ok {
			if min, err := parseNumber(lot.MinQty); err == nil {
				rule.MinOrderSize = min
			}
			if step, err := parseNumber(lot.StepSize); err == nil {
				rule.AmountIncrement = step
			}
			if max, err := parseNumber(lot.MaxQty); err == nil && max.IsPositive() {
				rule.MaxOrderSize = max
			}
		}
		if notional, ok := s.filter("MIN_NOTIONAL", "NOTIONAL"); ok {
			if min, err := parseNumber(notional.MinNotional); err == nil {
				rule.MinNotional = min
			}
		}
		rules[pair] = rule
	}
	return rules, nil
}

// PlaceOrder implements interfaces.ExchangeAdapter. The payload travels
// form-encoded; price is omitted for market orders.
func (e *Exchange) PlaceOrder(ctx context.Context, req interfaces.OrderRequest) (interfaces.OrderAck, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderAck{}, err
	}

	var form common.Params
	form.Add("symbol", NativeSymbol(req.Pair))
	form.Add("side", string(req.Side))
	form.Add("type", string(req.Type))
	form.Add("quantity", req.Quantity.String())
	if req.Type == interfaces.TypeLimit {
		form.Add("price", req.Price.String())
	}

	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodPost,
		Path:          OrderPath,
		Form:          form,
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

	resp := decodeObject(body)
	ack := interfaces.OrderAck{
		ClientOrderID:   req.ClientOrderID,
		ExchangeOrderID: stringField(resp, "orderId"),
		Timestamp:       msToTime(numberField(resp, "createdTime")),
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

// CancelOrder implements interfaces.ExchangeAdapter.
func (e *Exchange) CancelOrder(ctx context.Context, order interfaces.TrackedOrder) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return fmt.Errorf("cancel %s: %w", order.ClientOrderID, interfaces.ErrOrderNotTracked)
	}
	var form common.Params
	form.Add("symbol", NativeSymbol(order.Pair))
	form.Add("orderId", order.ExchangeOrderID)
	_, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodDelete,
		Path:          OrderPath,
		Form:          form,
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("cancelling order %s: %w", order.ClientOrderID, err)
	}
	return nil
}

// OrderStatus implements interfaces.ExchangeAdapter.
func (e *Exchange) OrderStatus(ctx context.Context, order interfaces.TrackedOrder) (interfaces.OrderUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return interfaces.OrderUpdate{}, err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return interfaces.OrderUpdate{}, fmt.Errorf("status of %s: %w", order.ClientOrderID, interfaces.ErrOrderNotTracked)
	}
	var query common.Params
	query.Add("symbol", NativeSymbol(order.Pair))
	query.Add("orderId", order.ExchangeOrderID)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          OrderPath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return interfaces.OrderUpdate{}, fmt.Errorf("fetching status of %s: %w", order.ClientOrderID, err)
	}

	resp := decodeObject(body)
	rawStatus := stringField(resp, "status")
	update := interfaces.OrderUpdate{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.ExchangeOrderID,
		Pair:            order.Pair,
		State:           orderStates.Resolve(rawStatus, order.State),
		RawStatus:       rawStatus,
		Timestamp:       msToTime(numberField(resp, "updateTime")),
	}
	if executed, err := parseNumber(numberField(resp, "executedQty")); err == nil {
		update.FilledQuantity = executed
	}
	return update, nil
}

// TradeUpdatesForOrder implements interfaces.ExchangeAdapter.
func (e *Exchange) TradeUpdatesForOrder(ctx context.Context, order interfaces.TrackedOrder) ([]interfaces.TradeUpdate, error) {
	if err := e.requireAuth(); err != nil {
		return nil, err
	}
	if order.ExchangeOrderID == "" || order.ExchangeOrderID == interfaces.UnknownExchangeOrderID {
		return nil, nil
	}
	var query common.Params
	query.Add("symbol", NativeSymbol(order.Pair))
	query.Add("orderId", order.ExchangeOrderID)
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          MyTradesPath,
		Query:         query,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching trades of %s: %w", order.ClientOrderID, err)
	}

	var trades []accountTrade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("decoding trades of %s: %w", order.ClientOrderID, err)
	}
	updates := make([]interfaces.TradeUpdate, 0, len(trades))
	for _, t := range trades {
		updates = append(updates, t.toUpdate(order))
	}
	return updates, nil
}

type accountTrade struct {
	ID              json.Number `json:"id"`
	OrderID         json.Number `json:"orderId"`
	Price           json.Number `json:"price"`
	Quantity        json.Number `json:"qty"`
	QuoteQuantity   json.Number `json:"quoteQty"`
	Commission      json.Number `json:"commission"`
	CommissionAsset string      `json:"commissionAsset"`
	Time            json.Number `json:"time"`
}

func (t accountTrade) toUpdate(order interfaces.TrackedOrder) interfaces.TradeUpdate {
	price, _ := parseNumber(t.Price)
	qty, _ := parseNumber(t.Quantity)
	fee, _ := parseNumber(t.Commission)
	return interfaces.TradeUpdate{
		TradeID:         t.ID.String(),
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.ExchangeOrderID,
		Pair:            order.Pair,
		Side:            order.Side,
		Price:           price,
		Quantity:        qty,
		Fee:             fee,
		FeeAsset:        t.CommissionAsset,
		Timestamp:       msToTime(t.Time),
	}
}

// UpdateBalances implements interfaces.ExchangeAdapter. The account
// endpoint returns a full snapshot, so assets absent remotely are evicted.
func (e *Exchange) UpdateBalances(ctx context.Context) error {
	if err := e.requireAuth(); err != nil {
		return err
	}
	body, err := e.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          AccountPath,
		Authenticated: true,
	})
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}

	var account struct {
		Balances []struct {
			Asset  string      `json:"asset"`
			Free   json.Number `json:"free"`
			Locked json.Number `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return fmt.Errorf("decoding account: %w", err)
	}

	balances := make([]interfaces.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		if b.Asset == "" {
			continue
		}
		free, _ := parseNumber(b.Free)
		locked, _ := parseNumber(b.Locked)
		balances = append(balances, interfaces.Balance{
			Asset:     strings.ToUpper(b.Asset),
			Available: free,
			Locked:    locked,
		})
	}
	e.balances.SetAll(balances)
	return nil
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
	return strings.Contains(strings.ToLower(err.Error()), strings.ToLower(orderNotFoundMessage))
}

// Ticker is one symbol's entry from the public tickers feed.
type Ticker struct {
	Symbol string
	Last   decimal.Decimal
	Buy    decimal.Decimal
	Sell   decimal.Decimal
}

// tickerInfo tolerates both the base_unit/quote_unit form and the plain
// bid/ask aliases.
type tickerInfo struct {
	BaseUnit  string      `json:"base_unit"`
	Base      string      `json:"base"`
	QuoteUnit string      `json:"quote_unit"`
	Quote     string      `json:"quote"`
	Last      json.Number `json:"last"`
	Buy       json.Number `json:"buy"`
	Bid       json.Number `json:"bid"`
	Sell      json.Number `json:"sell"`
	Ask       json.Number `json:"ask"`
}

// Tickers fetches the public tickers feed, keyed by pair. Entries whose
// key cannot be resolved to a pair are dropped.
func (e *Exchange) Tickers(ctx context.Context) (map[symbols.Pair]Ticker, error) {
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   TickersPath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching tickers: %w", err)
	}
	var raw map[string]tickerInfo
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding tickers: %w", err)
	}

	tickers := make(map[symbols.Pair]Ticker, len(raw))
	for key, info := range raw {
		pair, ok := pairFromTicker(key, info)
		if !ok {
			continue
		}
		last, _ := parseNumber(info.Last)
		buy, _ := parseNumber(pickNumber(info.Buy, info.Bid))
		sell, _ := parseNumber(pickNumber(info.Sell, info.Ask))
		tickers[pair] = Ticker{
			Symbol: key,
			Last:   last,
			Buy:    buy,
			Sell:   sell,
		}
	}
	return tickers, nil
}

// pairFromTicker resolves a ticker entry to a pair, preferring the
// explicit base/quote units and falling back to splitting the key on a
// known quote suffix.
func pairFromTicker(key string, info tickerInfo) (symbols.Pair, bool) {
	base := firstNonEmpty(info.BaseUnit, info.Base)
	quote := firstNonEmpty(info.QuoteUnit, info.Quote)
	if base != "" && quote != "" {
		return symbols.NewPair(base, quote), true
	}
	upper := strings.ToUpper(key)
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(upper, suffix) && len(upper) > len(suffix) {
			return symbols.NewPair(upper[:len(upper)-len(suffix)], suffix), true
		}
	}
	return symbols.Pair{}, false
}

// LastTradePrices implements interfaces.LastTradePriceProvider.
func (e *Exchange) LastTradePrices(ctx context.Context) (map[symbols.Pair]float64, error) {
	tickers, err := e.Tickers(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[symbols.Pair]float64, len(tickers))
	for pair, ticker := range tickers {
		if price, _ := ticker.Last.Float64(); price > 0 {
			prices[pair] = price
		}
	}
	return prices, nil
}

// OrderBook fetches a depth snapshot for the pair from the public host.
func (e *Exchange) OrderBook(ctx context.Context, pair symbols.Pair) (bids, asks []interfaces.BookLevel, err error) {
	var query common.Params
	query.Add("symbol", NativeSymbol(pair))
	body, err := e.rest.Execute(ctx, common.Call{
		Method: http.MethodGet,
		Path:   DepthPath,
		Query:  query,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetching depth for %s: %w", pair, err)
	}

	var depth struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}
	if err := json.Unmarshal(body, &depth); err != nil {
		return nil, nil, fmt.Errorf("decoding depth for %s: %w", pair, err)
	}
	return levelsFromPairs(depth.Bids, true), levelsFromPairs(depth.Asks, false), nil
}

// ProcessStreamEvent implements interfaces.ExchangeAdapter. Events arrive
// from the polling user stream as open-order and balance snapshots.
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
	ClientOrderID string      `json:"clientOrderId"`
	OrderID       json.Number `json:"orderId"`
	Status        string      `json:"status"`
	UpdateTime    json.Number `json:"updateTime"`
	ExecutedQty   json.Number `json:"executedQty"`
}

func (e *Exchange) processOrderEvent(data json.RawMessage) {
	var order streamOrder
	if err := json.Unmarshal(data, &order); err != nil {
		e.logger.Warn("malformed order update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	current, ok := e.tracker.Get(order.ClientOrderID)
	if !ok {
		// Placement does not carry the client id to WazirX, so stream
		// entries usually resolve through the exchange id instead.
		current, ok = e.tracker.GetByExchangeID(order.OrderID.String())
		if !ok {
			return
		}
	}
	update := interfaces.OrderUpdate{
		ClientOrderID:   current.ClientOrderID,
		ExchangeOrderID: order.OrderID.String(),
		Pair:            current.Pair,
		State:           orderStates.Resolve(order.Status, current.State),
		RawStatus:       order.Status,
		Timestamp:       msToTime(order.UpdateTime),
	}
	if executed, err := parseNumber(order.ExecutedQty); err == nil {
		update.FilledQuantity = executed
	}
	e.tracker.ApplyUpdate(update)
}

type streamBalance struct {
	Asset  string      `json:"asset"`
	Free   json.Number `json:"free"`
	Locked json.Number `json:"locked"`
}

func (e *Exchange) processBalanceEvent(data json.RawMessage) {
	var bal streamBalance
	if err := json.Unmarshal(data, &bal); err != nil {
		e.logger.Warn("malformed balance update", logging.String("exchange", Name), logging.Error(err))
		return
	}
	if bal.Asset == "" {
		return
	}
	free, _ := parseNumber(bal.Free)
	locked, _ := parseNumber(bal.Locked)
	e.balances.Set(interfaces.Balance{
		Asset:     strings.ToUpper(bal.Asset),
		Available: free,
		Locked:    locked,
	})
}

// helpers

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
