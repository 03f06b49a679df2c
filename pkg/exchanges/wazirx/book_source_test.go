package wazirx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

func collectBookMessages(t *testing.T, source *OrderBookSource, want int, timeout time.Duration) []interfaces.BookMessage {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan interfaces.BookMessage, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		source.Run(ctx, out)
	}()

	var messages []interfaces.BookMessage
	deadline := time.After(timeout)
	for len(messages) < want {
		select {
		case msg := <-out:
			messages = append(messages, msg)
		case <-deadline:
			t.Fatalf("timed out after %d of %d messages", len(messages), want)
		}
	}
	cancel()
	<-done
	return messages
}

func TestBookSourceEmitsSnapshots(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DepthPath, r.URL.Path)
		assert.Equal(t, "btcinr", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"bids":[["4999000","0.1"]],"asks":[["5001000","0.2"]]}`))
	})

	source := NewOrderBookSource(ex, BookSourceConfig{
		Pairs:    []symbols.Pair{btcinr()},
		Interval: 20 * time.Millisecond,
	})
	messages := collectBookMessages(t, source, 2, 5*time.Second)

	for _, msg := range messages {
		assert.Equal(t, interfaces.BookSnapshot, msg.Kind)
		assert.Equal(t, btcinr(), msg.Pair)
		require.Len(t, msg.Bids, 1)
		assert.True(t, msg.Bids[0].Price.Equal(decimal.NewFromInt(4999000)))
		assert.Greater(t, msg.UpdateID, int64(0))
	}
}

func TestBookSourcePollsEveryConfiguredPair(t *testing.T) {
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bids":[],"asks":[]}`))
	})

	source := NewOrderBookSource(ex, BookSourceConfig{
		Pairs:    []symbols.Pair{btcinr(), symbols.NewPair("ETH", "USDT")},
		Interval: 20 * time.Millisecond,
	})
	messages := collectBookMessages(t, source, 2, 5*time.Second)

	seen := map[symbols.Pair]bool{}
	for _, msg := range messages {
		seen[msg.Pair] = true
	}
	assert.True(t, seen[btcinr()])
	assert.True(t, seen[symbols.NewPair("ETH", "USDT")])
}

func TestBookSourceSurvivesFetchErrors(t *testing.T) {
	failing := true
	ex := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if failing {
			failing = false
			http.Error(w, `{"message":"busy"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"bids":[["4999000","0.1"]],"asks":[]}`))
	})

	source := NewOrderBookSource(ex, BookSourceConfig{
		Pairs:    []symbols.Pair{btcinr()},
		Interval: 20 * time.Millisecond,
	})
	messages := collectBookMessages(t, source, 1, 5*time.Second)
	assert.Equal(t, interfaces.BookSnapshot, messages[0].Kind)
}
