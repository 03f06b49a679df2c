package coindcx

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/websocket"
)

func runUserStream(t *testing.T) (*websocket.MockConnector, chan interfaces.StreamEvent) {
	t.Helper()
	auth, err := NewAuth("test-key", "test-secret", nil)
	require.NoError(t, err)

	mock := websocket.NewMockConnector()
	source, err := NewUserStreamSource(UserStreamConfig{
		Auth: auth,
		WS:   mock,
	})
	require.NoError(t, err)

	out := make(chan interfaces.StreamEvent, 16)
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

	require.Eventually(t, func() bool {
		return mock.GetConnectCalls() == 1
	}, time.Second, 5*time.Millisecond)

	return mock, out
}

func TestUserStreamRequiresAuth(t *testing.T) {
	_, err := NewUserStreamSource(UserStreamConfig{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)
}

func TestUserStreamJoinsPrivateChannelOnConnect(t *testing.T) {
	mock, _ := runUserStream(t)

	require.Eventually(t, func() bool {
		return mock.GetSendCalls() == 1
	}, time.Second, 5*time.Millisecond)

	mock.SimulateReconnect()
	assert.Eventually(t, func() bool {
		return mock.GetSendCalls() == 2
	}, time.Second, 5*time.Millisecond, "signed join replayed after reconnect")
}

func TestUserStreamClassifiesEvents(t *testing.T) {
	mock, out := runUserStream(t)

	cases := []struct {
		frame string
		kind  interfaces.StreamEventKind
	}{
		{`{"event":"order-update","data":{"client_order_id":"haveli-1","status":"open"}}`, interfaces.EventOrderUpdate},
		{`{"e":"trade-update","data":[{"c":"haveli-1","p":"50","q":"1"}]}`, interfaces.EventTradeUpdate},
		{`{"event":"balance-update","data":{"currency":"BTC","balance":"1"}}`, interfaces.EventBalanceUpdate},
		{`{"event":"price-alert","data":{"foo":"bar"}}`, interfaces.EventUnrecognized},
	}

	for _, tc := range cases {
		mock.SimulateRawMessage([]byte(tc.frame))
		select {
		case event := <-out:
			assert.Equal(t, tc.kind, event.Kind, "frame %s", tc.frame)
			assert.NotEmpty(t, event.Data)
		case <-time.After(time.Second):
			t.Fatalf("no event for frame %s", tc.frame)
		}
	}
}

func TestUserStreamForwardsPayloadData(t *testing.T) {
	mock, out := runUserStream(t)

	mock.SimulateRawMessage([]byte(`{"event":"order-update","data":[{"client_order_id":"haveli-9","status":"filled"}]}`))

	select {
	case event := <-out:
		var orders []map[string]any
		require.NoError(t, json.Unmarshal(event.Data, &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, "filled", orders[0]["status"])
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}
