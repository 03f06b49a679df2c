package wazirx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

const exchangeInfoFixture = `{"symbols":[
	{"symbol":"btcinr","baseAsset":"btc","quoteAsset":"inr","status":"trading","filters":[
		{"filterType":"PRICE_FILTER","tickSize":"0.01"},
		{"filterType":"LOT_SIZE","minQty":"0.00001","maxQty":"100","stepSize":"0.00001"},
		{"filterType":"MIN_NOTIONAL","minNotional":"50"}
	]},
	{"symbol":"ethusdt","baseAsset":"eth","quoteAsset":"usdt","status":"trading","filters":[
		{"filterType":"PRICE_FILTER","tickSize":"0.1"},
		{"filterType":"NOTIONAL","minNotional":"5"}
	]},
	{"symbol":"xrpinr","baseAsset":"xrp","quoteAsset":"inr","status":"halt","filters":[]}
]}`

const tickersFixture = `{
	"btcinr":{"base_unit":"btc","quote_unit":"inr","last":"5000000","buy":"4999000","sell":"5001000"},
	"ethusdt":{"last":"2600.5","buy":"2600","sell":"2601"},
	"junk":{"last":"1"}
}`

func newTestExchange(t *testing.T, handler http.HandlerFunc) *Exchange {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ex, err := New(Config{
		Options: &interfaces.ConnectorOptions{
			APIKey:    "test-key",
			APISecret: testSecret,
		},
		BaseURL: server.URL,
		HTTP: common.NewHTTPClient(&common.ClientConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 1,
			RetryDelay: 10 * time.Millisecond,
			RateLimit:  ratelimit.Rate{Limit: 1000, Interval: time.Second},
		}),
	})
	require.NoError(t, err)
	return ex
}

func btcinr() symbols.Pair { return symbols.NewPair("BTC", "INR") }

// formValues decodes the signed form-encoded request body.
func formValues(t *testing.T, r *http.Request) url.Values {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	values, err := url.ParseQuery(string(raw))
	require.NoError(t, err)
	return values
}

func TestNativeSymbol(t *testing.T) {
	assert.Equal(t, "btcinr", NativeSymbol(btcinr()))
	assert.Equal(t, "ethusdt", NativeSymbol(symbols.NewPair("ETH", "USDT")))
}

func TestSymbolMapParsesExchangeInfo(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ExchangeInfoPath, r.URL.Path)
		w.Write([]byte(exchangeInfoFixture))
	})

	m, err := ex.SymbolMap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len(), "the halted market is dropped")

	symbol, ok := m.Symbol(btcinr())
	require.True(t, ok)
	assert.Equal(t, "btcinr", symbol)

	pair, ok := m.Pair("ethusdt")
	require.True(t, ok)
	assert.Equal(t, symbols.NewPair("ETH", "USDT"), pair)
}

func TestPlaceOrderSendsSignedForm(t *testing.T) {
	var form url.Values
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, OrderPath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		form = formValues(t, r)
		w.Write([]byte(`{"orderId":12345,"status":"NEW","createdTime":1700000000000}`))
	})

	ack, err := ex.PlaceOrder(context.Background(), interfaces.OrderRequest{
		ClientOrderID: "hbot-abc",
		Pair:          btcinr(),
		Side:          interfaces.SideBuy,
		Type:          interfaces.TypeLimit,
		Price:         decimal.RequireFromString("4900000"),
		Quantity:      decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)

	assert.Equal(t, "btcinr", form.Get("symbol"))
	assert.Equal(t, "buy", form.Get("side"))
	assert.Equal(t, "limit", form.Get("type"))
	assert.Equal(t, "0.001", form.Get("quantity"))
	assert.Equal(t, "4900000", form.Get("price"))
	assert.NotEmpty(t, form.Get("signature"))
	assert.NotEmpty(t, form.Get("timestamp"))

	assert.Equal(t, "12345", ack.ExchangeOrderID)
	assert.False(t, ack.Unconfirmed)

	tracked, ok := ex.Tracker().Get("hbot-abc")
	require.True(t, ok)
	assert.Equal(t, interfaces.StatePendingCreate, tracked.State)
	assert.Equal(t, "12345", tracked.ExchangeOrderID)
}

func TestPlaceOrderMarketOmitsPrice(t *testing.T) {
	var form url.Values
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		form = formValues(t, r)
		w.Write([]byte(`{"orderId":77,"status":"NEW"}`))
	})

	_, err := ex.PlaceOrder(context.Background(), interfaces.OrderRequest{
		ClientOrderID: "hbot-mkt",
		Pair:          btcinr(),
		Side:          interfaces.SideSell,
		Type:          interfaces.TypeMarket,
		Quantity:      decimal.RequireFromString("0.5"),
	})
	require.NoError(t, err)

	assert.Equal(t, "market", form.Get("type"))
	assert.False(t, form.Has("price"))
}

func TestPlaceOrderServiceUnavailableTracksUnconfirmed(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":2136,"message":"Service unavailable"}`))
	})

	ack, err := ex.PlaceOrder(context.Background(), interfaces.OrderRequest{
		ClientOrderID: "hbot-503",
		Pair:          btcinr(),
		Side:          interfaces.SideBuy,
		Type:          interfaces.TypeLimit,
		Price:         decimal.RequireFromString("4900000"),
		Quantity:      decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)
	assert.True(t, ack.Unconfirmed)
	assert.Equal(t, interfaces.UnknownExchangeOrderID, ack.ExchangeOrderID)

	tracked, ok := ex.Tracker().Get("hbot-503")
	require.True(t, ok)
	assert.Equal(t, interfaces.StatePendingCreate, tracked.State)
}

func TestCancelOrderSendsSymbolAndOrderID(t *testing.T) {
	var form url.Values
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, OrderPath, r.URL.Path)
		require.Equal(t, http.MethodDelete, r.Method)
		form = formValues(t, r)
		w.Write([]byte(`{"orderId":42,"status":"CANCELED"}`))
	})

	err := ex.CancelOrder(context.Background(), interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: "42",
		Pair:            btcinr(),
	})
	require.NoError(t, err)
	assert.Equal(t, "btcinr", form.Get("symbol"))
	assert.Equal(t, "42", form.Get("orderId"))
}

func TestCancelOrderWithoutExchangeID(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := ex.CancelOrder(context.Background(), interfaces.TrackedOrder{
		ClientOrderID: "hbot-abc",
		Pair:          btcinr(),
	})
	assert.ErrorIs(t, err, interfaces.ErrOrderNotTracked)

	err = ex.CancelOrder(context.Background(), interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: interfaces.UnknownExchangeOrderID,
		Pair:            btcinr(),
	})
	assert.ErrorIs(t, err, interfaces.ErrOrderNotTracked)
}

func TestOrderStatusResolvesStates(t *testing.T) {
	cases := []struct {
		raw  string
		want interfaces.OrderState
	}{
		{"NEW", interfaces.StateOpen},
		{"PARTIALLY_FILLED", interfaces.StatePartiallyFilled},
		{"FILLED", interfaces.StateFilled},
		{"CANCELED", interfaces.StateCanceled},
		{"REJECTED", interfaces.StateFailed},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, OrderPath, r.URL.Path)
				require.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "btcinr", r.URL.Query().Get("symbol"))
				assert.Equal(t, "42", r.URL.Query().Get("orderId"))
				w.Write([]byte(`{"orderId":42,"status":"` + tc.raw + `","updateTime":1700000001000,"executedQty":"0.25"}`))
			})

			update, err := ex.OrderStatus(context.Background(), interfaces.TrackedOrder{
				ClientOrderID:   "hbot-abc",
				ExchangeOrderID: "42",
				Pair:            btcinr(),
				State:           interfaces.StateOpen,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, update.State)
			assert.Equal(t, tc.raw, update.RawStatus)
			assert.True(t, decimal.RequireFromString("0.25").Equal(update.FilledQuantity))
		})
	}
}

func TestOrderStatusUnknownRawKeepsCurrentState(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderId":42,"status":"SOMETHING_NEW"}`))
	})

	update, err := ex.OrderStatus(context.Background(), interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: "42",
		Pair:            btcinr(),
		State:           interfaces.StatePartiallyFilled,
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatePartiallyFilled, update.State)
}

func TestTradeUpdatesForOrder(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, MyTradesPath, r.URL.Path)
		assert.Equal(t, "btcinr", r.URL.Query().Get("symbol"))
		assert.Equal(t, "42", r.URL.Query().Get("orderId"))
		w.Write([]byte(`[
			{"id":101,"orderId":42,"price":"4900000","qty":"0.0005","quoteQty":"2450","commission":"4.9","commissionAsset":"inr","time":1700000002000},
			{"id":102,"orderId":42,"price":"4901000","qty":"0.0005","quoteQty":"2450.5","commission":"4.9","commissionAsset":"inr","time":1700000003000}
		]`))
	})

	updates, err := ex.TradeUpdatesForOrder(context.Background(), interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: "42",
		Pair:            btcinr(),
		Side:            interfaces.SideBuy,
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)

	first := updates[0]
	assert.Equal(t, "101", first.TradeID)
	assert.Equal(t, "hbot-abc", first.ClientOrderID)
	assert.True(t, decimal.RequireFromString("4900000").Equal(first.Price))
	assert.True(t, decimal.RequireFromString("0.0005").Equal(first.Quantity))
	assert.True(t, decimal.RequireFromString("4.9").Equal(first.Fee))
	assert.Equal(t, "inr", first.FeeAsset)
	assert.Equal(t, time.UnixMilli(1700000002000), first.Timestamp)
}

func TestTradeUpdatesSkipUnknownExchangeID(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	updates, err := ex.TradeUpdatesForOrder(context.Background(), interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: interfaces.UnknownExchangeOrderID,
		Pair:            btcinr(),
	})
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestTradingRulesFromFilters(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(exchangeInfoFixture))
	})

	rules, err := ex.TradingRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2, "halted markets carry no rules")

	btc := rules[btcinr()]
	assert.True(t, decimal.RequireFromString("0.01").Equal(btc.PriceIncrement))
	assert.True(t, decimal.RequireFromString("0.00001").Equal(btc.MinOrderSize))
	assert.True(t, decimal.RequireFromString("0.00001").Equal(btc.AmountIncrement))
	assert.True(t, decimal.RequireFromString("100").Equal(btc.MaxOrderSize))
	assert.True(t, decimal.RequireFromString("50").Equal(btc.MinNotional))

	eth := rules[symbols.NewPair("ETH", "USDT")]
	assert.True(t, decimal.RequireFromString("0.1").Equal(eth.PriceIncrement))
	assert.True(t, decimal.RequireFromString("5").Equal(eth.MinNotional), "NOTIONAL is accepted as an alias")
	assert.True(t, defaultMaxQty.Equal(eth.MaxOrderSize))
}

func TestUpdateBalancesEvictsMissingAssets(t *testing.T) {
	responses := []string{
		`{"balances":[
			{"asset":"inr","free":"1500.5","locked":"100"},
			{"asset":"btc","free":"0.25","locked":"0"}
		]}`,
		`{"balances":[
			{"asset":"inr","free":"1600","locked":"0"}
		]}`,
	}
	var calls int
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, AccountPath, r.URL.Path)
		w.Write([]byte(responses[calls]))
		calls++
	})

	require.NoError(t, ex.UpdateBalances(context.Background()))
	inr, ok := ex.BalanceFor("INR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(inr.Available))
	assert.True(t, decimal.RequireFromString("100").Equal(inr.Locked))
	_, ok = ex.BalanceFor("BTC")
	assert.True(t, ok)

	require.NoError(t, ex.UpdateBalances(context.Background()))
	_, ok = ex.BalanceFor("BTC")
	assert.False(t, ok, "assets absent from the snapshot are evicted")
	inr, ok = ex.BalanceFor("INR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("1600").Equal(inr.Available))
}

func TestTickersResolvesPairs(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, TickersPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("X-Api-Key"), "tickers are public")
		w.Write([]byte(tickersFixture))
	})

	tickers, err := ex.Tickers(context.Background())
	require.NoError(t, err)
	require.Len(t, tickers, 2, "the unresolvable key is dropped")

	btc := tickers[btcinr()]
	assert.Equal(t, "btcinr", btc.Symbol)
	assert.True(t, decimal.RequireFromString("5000000").Equal(btc.Last))
	assert.True(t, decimal.RequireFromString("4999000").Equal(btc.Buy))
	assert.True(t, decimal.RequireFromString("5001000").Equal(btc.Sell))

	// no explicit units: the key is split on a known quote suffix
	eth, ok := tickers[symbols.NewPair("ETH", "USDT")]
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("2600.5").Equal(eth.Last))
}

func TestLastTradePrices(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tickersFixture))
	})

	prices, err := ex.LastTradePrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5000000.0, prices[btcinr()])
	assert.Equal(t, 2600.5, prices[symbols.NewPair("ETH", "USDT")])
}

func TestOrderBookSortsLevels(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DepthPath, r.URL.Path)
		assert.Equal(t, "btcinr", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"bids":[["4998000","0.5"],["4999000","0.1"]],
			"asks":[["5002000","0.3"],["5001000","0.2"]]
		}`))
	})

	bids, asks, err := ex.OrderBook(context.Background(), btcinr())
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.True(t, decimal.RequireFromString("4999000").Equal(bids[0].Price), "best bid first")
	assert.True(t, decimal.RequireFromString("5001000").Equal(asks[0].Price), "best ask first")
}

func TestIsOrderNotFound(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.False(t, ex.IsOrderNotFound(nil))
	assert.False(t, ex.IsOrderNotFound(assert.AnError))
	assert.True(t, ex.IsOrderNotFound(&common.APIError{
		Status:  404,
		Code:    "2005",
		Message: "Order does not exist",
	}))
}

func TestProcessStreamEventOrderUpdate(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {})
	ex.Tracker().Track(interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: "42",
		Pair:            btcinr(),
		State:           interfaces.StateOpen,
	})

	ex.ProcessStreamEvent(interfaces.StreamEvent{
		Kind:    interfaces.EventOrderUpdate,
		Channel: OpenOrdersPath,
		Data:    []byte(`[{"clientOrderId":"hbot-abc","orderId":42,"status":"PARTIALLY_FILLED","updateTime":1700000004000,"executedQty":"0.0004"}]`),
	})

	tracked, ok := ex.Tracker().Get("hbot-abc")
	require.True(t, ok)
	assert.Equal(t, interfaces.StatePartiallyFilled, tracked.State)
	assert.True(t, decimal.RequireFromString("0.0004").Equal(tracked.FilledQuantity))
}

func TestProcessStreamEventResolvesByExchangeID(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {})
	ex.Tracker().Track(interfaces.TrackedOrder{
		ClientOrderID:   "hbot-abc",
		ExchangeOrderID: "42",
		Pair:            btcinr(),
		State:           interfaces.StateOpen,
	})

	// the exchange does not echo client ids it never received
	ex.ProcessStreamEvent(interfaces.StreamEvent{
		Kind: interfaces.EventOrderUpdate,
		Data: []byte(`[{"orderId":42,"status":"FILLED","executedQty":"0.001"}]`),
	})

	tracked, ok := ex.Tracker().Get("hbot-abc")
	require.True(t, ok)
	assert.Equal(t, interfaces.StateFilled, tracked.State)
}

func TestProcessStreamEventBalanceUpdate(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {})

	ex.ProcessStreamEvent(interfaces.StreamEvent{
		Kind:    interfaces.EventBalanceUpdate,
		Channel: AccountPath,
		Data:    []byte(`[{"asset":"inr","free":"2000","locked":"50"}]`),
	})

	inr, ok := ex.BalanceFor("INR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("2000").Equal(inr.Available))
	assert.True(t, decimal.RequireFromString("50").Equal(inr.Locked))
}

func TestProcessStreamEventUntrackedOrderIgnored(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {})

	ex.ProcessStreamEvent(interfaces.StreamEvent{
		Kind: interfaces.EventOrderUpdate,
		Data: []byte(`[{"clientOrderId":"hbot-nope","orderId":99,"status":"FILLED"}]`),
	})

	_, ok := ex.Tracker().Get("hbot-nope")
	assert.False(t, ok)
}
