package coinswitch

import (
	"context"
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/symbols"
)

// BookSourceConfig configures an OrderBookSource.
type BookSourceConfig struct {
	Pairs  []symbols.Pair
	Logger logging.Logger

	// Interval between polling rounds; defaults to the adapter's poll
	// interval.
	Interval time.Duration
}

// OrderBookSource polls depth snapshots and recent trades for a set of
// pairs. CoinSwitch publishes no public websocket feeds, so every book
// update is a full snapshot stamped with a synthetic update id.
type OrderBookSource struct {
	exchange *Exchange
	pairs    []symbols.Pair
	interval time.Duration
	logger   logging.Logger

	// lastTrade tracks the newest emitted trade per pair so repeated
	// polls of the same window do not re-emit fills.
	lastTrade map[symbols.Pair]time.Time
}

// NewOrderBookSource creates a polling book source backed by the adapter's
// REST client.
func NewOrderBookSource(exchange *Exchange, cfg BookSourceConfig) *OrderBookSource {
	interval := cfg.Interval
	if interval <= 0 {
		interval = exchange.opts.PollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = exchange.logger
	}
	return &OrderBookSource{
		exchange:  exchange,
		pairs:     cfg.Pairs,
		interval:  interval,
		logger:    logger,
		lastTrade: make(map[symbols.Pair]time.Time),
	}
}

// Run implements interfaces.BookSource. It polls until the context is
// cancelled; individual fetch failures are logged and retried on the next
// round.
func (s *OrderBookSource) Run(ctx context.Context, out chan<- interfaces.BookMessage) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx, out)
		}
	}
}

func (s *OrderBookSource) poll(ctx context.Context, out chan<- interfaces.BookMessage) {
	for _, pair := range s.pairs {
		s.pollDepth(ctx, pair, out)
		s.pollTrades(ctx, pair, out)
	}
}

func (s *OrderBookSource) pollDepth(ctx context.Context, pair symbols.Pair, out chan<- interfaces.BookMessage) {
	bids, asks, err := s.exchange.OrderBook(ctx, pair)
	if err != nil {
		s.logger.Warn("depth poll failed",
			logging.String("exchange", Name),
			logging.String("pair", pair.String()),
			logging.Error(err),
		)
		return
	}
	now := time.Now()
	s.emit(ctx, out, interfaces.BookMessage{
		Kind:      interfaces.BookSnapshot,
		Pair:      pair,
		UpdateID:  now.UnixMilli(),
		Bids:      bids,
		Asks:      asks,
		Timestamp: now,
	})
}

func (s *OrderBookSource) pollTrades(ctx context.Context, pair symbols.Pair, out chan<- interfaces.BookMessage) {
	trades, err := s.exchange.PublicTrades(ctx, pair)
	if err != nil {
		s.logger.Warn("trades poll failed",
			logging.String("exchange", Name),
			logging.String("pair", pair.String()),
			logging.Error(err),
		)
		return
	}
	newest := s.lastTrade[pair]
	for _, trade := range trades {
		if !trade.Timestamp.After(s.lastTrade[pair]) {
			continue
		}
		if trade.Timestamp.After(newest) {
			newest = trade.Timestamp
		}
		s.emit(ctx, out, trade)
	}
	s.lastTrade[pair] = newest
}

func (s *OrderBookSource) emit(ctx context.Context, out chan<- interfaces.BookMessage, msg interfaces.BookMessage) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
