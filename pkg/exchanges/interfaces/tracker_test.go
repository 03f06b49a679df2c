package interfaces

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/symbols"
)

func newOrder(clientID string, state OrderState) TrackedOrder {
	return TrackedOrder{
		ClientOrderID: clientID,
		Pair:          symbols.NewPair("BTC", "USDT"),
		Side:          SideBuy,
		Type:          TypeLimit,
		Price:         decimal.RequireFromString("50000"),
		Quantity:      decimal.RequireFromString("0.5"),
		State:         state,
	}
}

func TestStateTableResolveKeepsCurrentOnUnknown(t *testing.T) {
	table := StateTable{
		"open":   StateOpen,
		"filled": StateFilled,
	}

	assert.Equal(t, StateOpen, table.Resolve("open", StatePendingCreate))
	assert.Equal(t, StateFilled, table.Resolve("filled", StateOpen))
	// A raw status the table does not know must not regress the order.
	assert.Equal(t, StatePartiallyFilled, table.Resolve("mystery", StatePartiallyFilled))
	assert.Equal(t, StateFilled, table.Resolve("", StateFilled))
}

func TestOrderStateTerminal(t *testing.T) {
	assert.False(t, StatePendingCreate.Terminal())
	assert.False(t, StateOpen.Terminal())
	assert.False(t, StatePartiallyFilled.Terminal())
	assert.True(t, StateFilled.Terminal())
	assert.True(t, StateCanceled.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestMemoryOrderTrackerApplyUpdate(t *testing.T) {
	tracker := NewMemoryOrderTracker()
	tracker.Track(newOrder("haveli-1", StatePendingCreate))

	updated, ok := tracker.ApplyUpdate(OrderUpdate{
		ClientOrderID:   "haveli-1",
		ExchangeOrderID: "9921",
		State:           StateOpen,
		Timestamp:       time.Now(),
	})
	require.True(t, ok)
	assert.Equal(t, "9921", updated.ExchangeOrderID)
	assert.Equal(t, StateOpen, updated.State)

	// Update arriving keyed only by exchange id still lands.
	updated, ok = tracker.ApplyUpdate(OrderUpdate{
		ExchangeOrderID: "9921",
		State:           StatePartiallyFilled,
		FilledQuantity:  decimal.RequireFromString("0.2"),
	})
	require.True(t, ok)
	assert.Equal(t, "haveli-1", updated.ClientOrderID)
	assert.Equal(t, StatePartiallyFilled, updated.State)
	assert.True(t, updated.FilledQuantity.Equal(decimal.RequireFromString("0.2")))

	// Stale fill quantities never shrink the recorded fill.
	updated, ok = tracker.ApplyUpdate(OrderUpdate{
		ClientOrderID:  "haveli-1",
		FilledQuantity: decimal.RequireFromString("0.1"),
	})
	require.True(t, ok)
	assert.True(t, updated.FilledQuantity.Equal(decimal.RequireFromString("0.2")))

	_, ok = tracker.ApplyUpdate(OrderUpdate{ClientOrderID: "never-seen"})
	assert.False(t, ok)
}

func TestMemoryOrderTrackerActiveExcludesTerminal(t *testing.T) {
	tracker := NewMemoryOrderTracker()
	tracker.Track(newOrder("a", StateOpen))
	tracker.Track(newOrder("b", StateFilled))
	tracker.Track(newOrder("c", StateCanceled))
	tracker.Track(newOrder("d", StatePartiallyFilled))

	active := tracker.Active()
	ids := make([]string, 0, len(active))
	for _, order := range active {
		ids = append(ids, order.ClientOrderID)
	}
	assert.ElementsMatch(t, []string{"a", "d"}, ids)
}

func TestMemoryOrderTrackerUnknownExchangeIDNeverMatches(t *testing.T) {
	tracker := NewMemoryOrderTracker()
	order := newOrder("a", StateOpen)
	order.ExchangeOrderID = UnknownExchangeOrderID
	tracker.Track(order)

	_, ok := tracker.GetByExchangeID(UnknownExchangeOrderID)
	assert.False(t, ok)
	_, ok = tracker.GetByExchangeID("")
	assert.False(t, ok)
}

func TestBalanceTrackerSetAllEvictsMissingAssets(t *testing.T) {
	tracker := NewBalanceTracker()
	tracker.SetAll([]Balance{
		{Asset: "BTC", Available: decimal.RequireFromString("1.5")},
		{Asset: "USDT", Available: decimal.RequireFromString("1000")},
		{Asset: "INR", Available: decimal.RequireFromString("50000")},
	})

	tracker.SetAll([]Balance{
		{Asset: "BTC", Available: decimal.RequireFromString("1.2"), Locked: decimal.RequireFromString("0.3")},
		{Asset: "USDT", Available: decimal.RequireFromString("900")},
	})

	_, ok := tracker.Get("INR")
	assert.False(t, ok, "asset missing from refresh must be evicted")

	btc, ok := tracker.Get("BTC")
	require.True(t, ok)
	assert.True(t, btc.Total().Equal(decimal.RequireFromString("1.5")))
	assert.Len(t, tracker.All(), 2)
}
