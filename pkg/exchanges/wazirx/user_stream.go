package wazirx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
)

// UserStreamConfig configures a UserStreamSource.
type UserStreamConfig struct {
	Logger logging.Logger

	// Interval between polling rounds; defaults to the adapter's poll
	// interval.
	Interval time.Duration
}

// UserStreamSource polls the account and open-orders endpoints and emits
// the snapshots as stream events, standing in for the websocket user
// stream WazirX does not provide.
type UserStreamSource struct {
	exchange *Exchange
	interval time.Duration
	logger   logging.Logger
}

// NewUserStreamSource creates a polling user stream. The adapter must hold
// credentials.
func NewUserStreamSource(exchange *Exchange, cfg UserStreamConfig) (*UserStreamSource, error) {
	if exchange.auth == nil {
		return nil, interfaces.ErrInvalidCredentials
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = exchange.opts.PollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = exchange.logger
	}
	return &UserStreamSource{
		exchange: exchange,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run implements interfaces.UserStreamSource.
func (s *UserStreamSource) Run(ctx context.Context, out chan<- interfaces.StreamEvent) error {
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

func (s *UserStreamSource) poll(ctx context.Context, out chan<- interfaces.StreamEvent) {
	if data, err := s.fetchBalances(ctx); err != nil {
		s.logger.Warn("account poll failed", logging.String("exchange", Name), logging.Error(err))
	} else {
		s.emit(ctx, out, interfaces.StreamEvent{
			Kind:      interfaces.EventBalanceUpdate,
			Channel:   AccountPath,
			Data:      data,
			Timestamp: time.Now(),
		})
	}

	if data, err := s.fetchOpenOrders(ctx); err != nil {
		s.logger.Warn("open orders poll failed", logging.String("exchange", Name), logging.Error(err))
	} else {
		s.emit(ctx, out, interfaces.StreamEvent{
			Kind:      interfaces.EventOrderUpdate,
			Channel:   OpenOrdersPath,
			Data:      data,
			Timestamp: time.Now(),
		})
	}
}

func (s *UserStreamSource) fetchBalances(ctx context.Context) (json.RawMessage, error) {
	body, err := s.exchange.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          AccountPath,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	// balances arrive wrapped as {"balances": [...]}
	var wrapped struct {
		Balances json.RawMessage `json:"balances"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Balances) > 0 {
		return wrapped.Balances, nil
	}
	return body, nil
}

func (s *UserStreamSource) fetchOpenOrders(ctx context.Context) (json.RawMessage, error) {
	body, err := s.exchange.rest.Execute(ctx, common.Call{
		Method:        http.MethodGet,
		Path:          OpenOrdersPath,
		Authenticated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching open orders: %w", err)
	}
	return body, nil
}

func (s *UserStreamSource) emit(ctx context.Context, out chan<- interfaces.StreamEvent, event interfaces.StreamEvent) {
	select {
	case out <- event:
	case <-ctx.Done():
	}
}
