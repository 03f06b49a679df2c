package coinswitch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
)

func collectStreamEvents(t *testing.T, source *UserStreamSource, want int, timeout time.Duration) []interfaces.StreamEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan interfaces.StreamEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		source.Run(ctx, out)
	}()

	var events []interfaces.StreamEvent
	deadline := time.After(timeout)
	for len(events) < want {
		select {
		case event := <-out:
			events = append(events, event)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(events), want)
		}
	}
	cancel()
	<-done
	return events
}

func TestUserStreamRequiresCredentials(t *testing.T) {
	ex, err := New(Config{})
	require.NoError(t, err)

	_, err = NewUserStreamSource(ex, UserStreamConfig{})
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)
}

func TestUserStreamEmitsPortfolioAndOrders(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PortfolioPath:
			w.Write([]byte(`{"data":[{"currency":"BTC","main_balance":"0.5","blocked_balance_order":"0"}]}`))
		case OrdersPath:
			assert.Equal(t, "true", r.URL.Query().Get("open"))
			w.Write([]byte(`{"data":{"orders":[{"client_order_id":"x-CS0100","order_id":901,"status":"OPEN"}]}}`))
		}
	})

	source, err := NewUserStreamSource(ex, UserStreamConfig{Interval: 20 * time.Millisecond})
	require.NoError(t, err)

	events := collectStreamEvents(t, source, 2, 5*time.Second)

	var balance, order *interfaces.StreamEvent
	for i := range events {
		switch events[i].Kind {
		case interfaces.EventBalanceUpdate:
			balance = &events[i]
		case interfaces.EventOrderUpdate:
			order = &events[i]
		}
	}

	require.NotNil(t, balance)
	assert.JSONEq(t,
		`[{"currency":"BTC","main_balance":"0.5","blocked_balance_order":"0"}]`,
		string(balance.Data))

	require.NotNil(t, order)
	assert.JSONEq(t,
		`[{"client_order_id":"x-CS0100","order_id":901,"status":"OPEN"}]`,
		string(order.Data))
}

func TestUserStreamEventsFoldIntoAdapter(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PortfolioPath:
			w.Write([]byte(`{"data":[{"currency":"INR","main_balance":"1000","blocked_balance_order":"10"}]}`))
		case OrdersPath:
			w.Write([]byte(`{"data":{"orders":[{"client_order_id":"x-CS0101","order_id":902,"status":"EXECUTED","executed_qty":"1"}]}}`))
		}
	})
	ex.Tracker().Track(interfaces.TrackedOrder{
		ClientOrderID: "x-CS0101",
		Pair:          btcinr(),
		State:         interfaces.StateOpen,
	})

	source, err := NewUserStreamSource(ex, UserStreamConfig{Interval: 20 * time.Millisecond})
	require.NoError(t, err)

	events := collectStreamEvents(t, source, 2, 5*time.Second)
	for _, event := range events {
		ex.ProcessStreamEvent(event)
	}

	tracked, ok := ex.Tracker().Get("x-CS0101")
	require.True(t, ok)
	assert.Equal(t, interfaces.StateFilled, tracked.State)

	inr, ok := ex.BalanceFor("INR")
	require.True(t, ok)
	assert.Equal(t, "1000", inr.Available.String())
}

func TestUserStreamSurvivesEndpointErrors(t *testing.T) {
	calls := 0
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PortfolioPath:
			calls++
			if calls == 1 {
				http.Error(w, `{"message":"busy"}`, http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"data":[{"currency":"BTC","main_balance":"0.5"}]}`))
		case OrdersPath:
			w.Write([]byte(`{"data":{"orders":[]}}`))
		}
	})

	source, err := NewUserStreamSource(ex, UserStreamConfig{Interval: 20 * time.Millisecond})
	require.NoError(t, err)

	events := collectStreamEvents(t, source, 3, 5*time.Second)
	kinds := make(map[interfaces.StreamEventKind]int)
	for _, event := range events {
		kinds[event.Kind]++
	}
	assert.GreaterOrEqual(t, kinds[interfaces.EventOrderUpdate], 1)
	assert.GreaterOrEqual(t, kinds[interfaces.EventBalanceUpdate], 1)
}
