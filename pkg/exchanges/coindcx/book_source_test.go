package coindcx

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/symbols"
	"github.com/veiloq/trading-connectors/pkg/websocket"
)

func runBookSource(t *testing.T, pairs []symbols.Pair) (*websocket.MockConnector, chan interfaces.BookMessage, context.CancelFunc) {
	t.Helper()
	mock := websocket.NewMockConnector()
	source := NewOrderBookSource(BookSourceConfig{
		Pairs: pairs,
		WS:    mock,
	})

	out := make(chan interfaces.BookMessage, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = source.Run(ctx, out)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// wait for Connect to install handlers and run the join
	require.Eventually(t, func() bool {
		return mock.GetConnectCalls() == 1
	}, time.Second, 5*time.Millisecond)

	return mock, out, cancel
}

func TestBookSourceDemuxesDepthFrames(t *testing.T) {
	mock, out, _ := runBookSource(t, []symbols.Pair{btcusdt()})

	mock.SimulateRawMessage([]byte(`{
		"channel": "B-BTC_USDT@orderbook@20",
		"ts": 1700000000000,
		"vs": 42,
		"bids": {"50.0": "1", "50.5": "2"},
		"asks": {"51.0": "3"}
	}`))

	select {
	case msg := <-out:
		assert.Equal(t, interfaces.BookDiff, msg.Kind)
		assert.Equal(t, btcusdt(), msg.Pair)
		assert.Equal(t, int64(42), msg.UpdateID)
		require.Len(t, msg.Bids, 2)
		assert.True(t, msg.Bids[0].Price.Equal(decimal.RequireFromString("50.5")), "bids sorted descending")
		require.Len(t, msg.Asks, 1)
	case <-time.After(time.Second):
		t.Fatal("no book message received")
	}
}

func TestBookSourceDemuxesTradeFrames(t *testing.T) {
	mock, out, _ := runBookSource(t, []symbols.Pair{btcusdt()})

	mock.SimulateRawMessage([]byte(`{
		"s": "B-BTC_USDT",
		"p": "50123.5",
		"q": "0.25",
		"T": 1700000000500,
		"m": 1
	}`))

	select {
	case msg := <-out:
		assert.Equal(t, interfaces.BookTrade, msg.Kind)
		assert.Equal(t, btcusdt(), msg.Pair)
		assert.True(t, msg.TradePrice.Equal(decimal.RequireFromString("50123.5")))
		assert.True(t, msg.TradeQuantity.Equal(decimal.RequireFromString("0.25")))
		assert.True(t, msg.IsBuyerMaker)
		assert.Equal(t, int64(1700000000500), msg.UpdateID)
	case <-time.After(time.Second):
		t.Fatal("no trade message received")
	}
}

func TestBookSourceSynthesizesUpdateIDWithoutVersion(t *testing.T) {
	mock, out, _ := runBookSource(t, []symbols.Pair{btcusdt()})

	mock.SimulateRawMessage([]byte(`{
		"channel": "B-BTC_USDT@orderbook@20",
		"ts": 1700000000250,
		"bids": {"50.0": "1"}
	}`))

	select {
	case msg := <-out:
		assert.Equal(t, int64(1700000000250), msg.UpdateID)
	case <-time.After(time.Second):
		t.Fatal("no book message received")
	}
}

func TestBookSourceIgnoresUnrelatedFrames(t *testing.T) {
	mock, out, _ := runBookSource(t, []symbols.Pair{btcusdt()})

	mock.SimulateRawMessage([]byte(`{"type":"welcome"}`))
	mock.SimulateRawMessage([]byte(`not json at all`))

	select {
	case msg := <-out:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBookSourceRejoinsChannelsOnReconnect(t *testing.T) {
	mock, _, _ := runBookSource(t, []symbols.Pair{btcusdt(), symbols.NewPair("ETH", "USDT")})

	// two channels per pair on the initial connect
	require.Eventually(t, func() bool {
		return mock.GetSendCalls() == 4
	}, time.Second, 5*time.Millisecond)

	mock.SimulateReconnect()

	assert.Eventually(t, func() bool {
		return mock.GetSendCalls() == 8
	}, time.Second, 5*time.Millisecond, "every channel joined again after reconnect")
}
