package interfaces

import (
	"sync"
	"time"
)

// MemoryOrderTracker is a mutex-guarded in-memory OrderTracker. It is the
// default tracker wired into adapters when the host does not bring its own.
type MemoryOrderTracker struct {
	mu     sync.RWMutex
	orders map[string]TrackedOrder // keyed by client order id
}

// NewMemoryOrderTracker creates an empty tracker.
func NewMemoryOrderTracker() *MemoryOrderTracker {
	return &MemoryOrderTracker{orders: make(map[string]TrackedOrder)}
}

// Track implements OrderTracker.
func (t *MemoryOrderTracker) Track(order TrackedOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	t.orders[order.ClientOrderID] = order
}

// Get implements OrderTracker.
func (t *MemoryOrderTracker) Get(clientOrderID string) (TrackedOrder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	order, ok := t.orders[clientOrderID]
	return order, ok
}

// GetByExchangeID implements OrderTracker.
func (t *MemoryOrderTracker) GetByExchangeID(exchangeOrderID string) (TrackedOrder, bool) {
	if exchangeOrderID == "" || exchangeOrderID == UnknownExchangeOrderID {
		return TrackedOrder{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, order := range t.orders {
		if order.ExchangeOrderID == exchangeOrderID {
			return order, true
		}
	}
	return TrackedOrder{}, false
}

// Active implements OrderTracker.
func (t *MemoryOrderTracker) Active() []TrackedOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()
	active := make([]TrackedOrder, 0, len(t.orders))
	for _, order := range t.orders {
		if !order.State.Terminal() {
			active = append(active, order)
		}
	}
	return active
}

// ApplyUpdate implements OrderTracker. The update is matched by client
// order id first, then by exchange order id. An exchange id learned from
// the update replaces a previously unknown one.
func (t *MemoryOrderTracker) ApplyUpdate(update OrderUpdate) (TrackedOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	order, ok := t.orders[update.ClientOrderID]
	if !ok && update.ExchangeOrderID != "" && update.ExchangeOrderID != UnknownExchangeOrderID {
		for _, candidate := range t.orders {
			if candidate.ExchangeOrderID == update.ExchangeOrderID {
				order = candidate
				ok = true
				break
			}
		}
	}
	if !ok {
		return TrackedOrder{}, false
	}

	if update.ExchangeOrderID != "" && update.ExchangeOrderID != UnknownExchangeOrderID {
		order.ExchangeOrderID = update.ExchangeOrderID
	}
	if update.State != StateUnknown {
		order.State = update.State
	}
	if update.FilledQuantity.GreaterThan(order.FilledQuantity) {
		order.FilledQuantity = update.FilledQuantity
	}
	if update.Timestamp.IsZero() {
		order.UpdatedAt = time.Now()
	} else {
		order.UpdatedAt = update.Timestamp
	}

	t.orders[order.ClientOrderID] = order
	return order, true
}

// Remove implements OrderTracker.
func (t *MemoryOrderTracker) Remove(clientOrderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.orders, clientOrderID)
}

// BalanceTracker caches per-asset balances. SetAll replaces the cache
// wholesale: assets absent from the new set are evicted, so a wallet the
// exchange stopped reporting never lingers locally.
type BalanceTracker struct {
	mu       sync.RWMutex
	balances map[string]Balance
}

// NewBalanceTracker creates an empty balance cache.
func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{balances: make(map[string]Balance)}
}

// SetAll replaces the cached balances with the given set.
func (t *BalanceTracker) SetAll(balances []Balance) {
	next := make(map[string]Balance, len(balances))
	for _, b := range balances {
		next[b.Asset] = b
	}
	t.mu.Lock()
	t.balances = next
	t.mu.Unlock()
}

// Set updates a single asset, as reported by user stream balance events.
func (t *BalanceTracker) Set(balance Balance) {
	t.mu.Lock()
	t.balances[balance.Asset] = balance
	t.mu.Unlock()
}

// Get returns the cached balance for an asset.
func (t *BalanceTracker) Get(asset string) (Balance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.balances[asset]
	return b, ok
}

// All returns all cached balances in unspecified order.
func (t *BalanceTracker) All() []Balance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]Balance, 0, len(t.balances))
	for _, b := range t.balances {
		all = append(all, b)
	}
	return all
}
