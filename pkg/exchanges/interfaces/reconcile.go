package interfaces

import (
	"context"
	"time"

	"github.com/veiloq/trading-connectors/pkg/logging"
)

// ReconcileConfig tunes the REST reconciliation loop.
type ReconcileConfig struct {
	// StatusInterval is the cadence of per-order status polls. Values under
	// 10s are raised to 10s: status endpoints are the most rate-constrained
	// surface on all three exchanges.
	StatusInterval time.Duration

	// TradeSweepEvery runs a full trade-history sweep once per this many
	// status cycles. Zero defaults to 6 (one sweep per minute at the
	// minimum cadence).
	TradeSweepEvery int

	// NotFoundLimit is how many consecutive order-not-found answers mark an
	// unconfirmed order as failed. Zero defaults to 3.
	NotFoundLimit int

	Logger logging.Logger
}

const minStatusInterval = 10 * time.Second

func (c *ReconcileConfig) applyDefaults() {
	if c.StatusInterval < minStatusInterval {
		c.StatusInterval = minStatusInterval
	}
	if c.TradeSweepEvery <= 0 {
		c.TradeSweepEvery = 6
	}
	if c.NotFoundLimit <= 0 {
		c.NotFoundLimit = 3
	}
	if c.Logger == nil {
		c.Logger = logging.NewLogger()
	}
}

// reconciler carries the loop state between cycles.
type reconciler struct {
	adapter ExchangeAdapter
	tracker OrderTracker
	cfg     ReconcileConfig
	onTrade func(TradeUpdate)

	// consecutive not-found answers per client order id
	misses map[string]int
}

// RunReconciliation polls order status over REST as a backstop for the user
// stream: it resolves orders placed through a 503, catches missed stream
// events, and fails orders the exchange insists it has never seen. It
// blocks until ctx is cancelled.
//
// Trade updates gathered by the periodic sweep are forwarded through the
// adapter's ProcessStreamEvent path only indirectly; the host receives them
// via the onTrade callback when set.
func RunReconciliation(
	ctx context.Context,
	adapter ExchangeAdapter,
	tracker OrderTracker,
	cfg ReconcileConfig,
	onTrade func(TradeUpdate),
) error {
	cfg.applyDefaults()
	r := &reconciler{
		adapter: adapter,
		tracker: tracker,
		cfg:     cfg,
		onTrade: onTrade,
		misses:  make(map[string]int),
	}

	ticker := time.NewTicker(cfg.StatusInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		cycle++

		if err := r.statusCycle(ctx); err != nil {
			return err
		}
		if cycle%cfg.TradeSweepEvery == 0 {
			if err := r.tradeSweep(ctx); err != nil {
				return err
			}
		}
	}
}

// statusCycle polls every active order's status once.
func (r *reconciler) statusCycle(ctx context.Context) error {
	log := r.cfg.Logger
	for _, order := range r.tracker.Active() {
		update, err := r.adapter.OrderStatus(ctx, order)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if r.adapter.IsOrderNotFound(err) {
				r.misses[order.ClientOrderID]++
				if r.misses[order.ClientOrderID] >= r.cfg.NotFoundLimit {
					log.Warn("order repeatedly not found, marking failed",
						logging.String("exchange", r.adapter.Name()),
						logging.String("client_order_id", order.ClientOrderID),
						logging.Int("misses", r.misses[order.ClientOrderID]),
					)
					r.tracker.ApplyUpdate(OrderUpdate{
						ClientOrderID: order.ClientOrderID,
						State:         StateFailed,
						Timestamp:     time.Now(),
					})
					delete(r.misses, order.ClientOrderID)
				}
				continue
			}
			log.Warn("order status poll failed",
				logging.String("exchange", r.adapter.Name()),
				logging.String("client_order_id", order.ClientOrderID),
				logging.Error(err),
			)
			continue
		}

		delete(r.misses, order.ClientOrderID)
		if update.ClientOrderID == "" {
			update.ClientOrderID = order.ClientOrderID
		}
		if updated, ok := r.tracker.ApplyUpdate(update); ok && updated.State.Terminal() {
			log.Info("order reached terminal state",
				logging.String("exchange", r.adapter.Name()),
				logging.String("client_order_id", updated.ClientOrderID),
				logging.String("state", updated.State.String()),
			)
		}
	}
	return nil
}

// tradeSweep fetches the fill history of every active order.
func (r *reconciler) tradeSweep(ctx context.Context) error {
	log := r.cfg.Logger
	for _, order := range r.tracker.Active() {
		trades, err := r.adapter.TradeUpdatesForOrder(ctx, order)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("trade sweep failed",
				logging.String("exchange", r.adapter.Name()),
				logging.String("client_order_id", order.ClientOrderID),
				logging.Error(err),
			)
			continue
		}
		for _, trade := range trades {
			if r.onTrade != nil {
				r.onTrade(trade)
			}
		}
	}
	return nil
}
