package coindcx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/websocket"
)

// UserStreamConfig assembles a UserStreamSource.
type UserStreamConfig struct {
	Auth    *Auth
	Options *interfaces.ConnectorOptions
	Logger  logging.Logger

	// WS overrides the connector, for tests against the mock server.
	WS websocket.WSConnector
}

// UserStreamSource streams private account events over the shared stream
// endpoint. The private channel is joined with a signed payload on every
// connect, including reconnects.
type UserStreamSource struct {
	auth   *Auth
	ws     websocket.WSConnector
	logger logging.Logger

	out chan<- interfaces.StreamEvent
	ctx context.Context
}

// NewUserStreamSource creates a push-mode user stream source.
func NewUserStreamSource(cfg UserStreamConfig) (*UserStreamSource, error) {
	if cfg.Auth == nil {
		return nil, interfaces.ErrInvalidCredentials
	}
	opts := cfg.Options
	if opts == nil {
		opts = interfaces.NewConnectorOptions()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	ws := cfg.WS
	if ws == nil {
		ws = websocket.NewConnector(websocket.Config{
			URL:               WSSURL,
			HeartbeatInterval: opts.WSHeartbeatInterval,
			ReconnectInterval: opts.WSReconnectInterval,
			MaxRetries:        10,
		})
	}
	return &UserStreamSource{
		auth:   cfg.Auth,
		ws:     ws,
		logger: logger,
	}, nil
}

// Run implements interfaces.UserStreamSource.
func (s *UserStreamSource) Run(ctx context.Context, out chan<- interfaces.StreamEvent) error {
	s.out = out
	s.ctx = ctx

	s.ws.SetRawHandler(s.handleFrame)
	s.ws.SetConnectHandler(s.joinPrivateChannel)

	if err := s.ws.Connect(ctx); err != nil {
		return err
	}
	defer s.ws.Close()

	<-ctx.Done()
	return ctx.Err()
}

func (s *UserStreamSource) joinPrivateChannel() {
	payload := s.auth.WSJoinPayload()
	payload["type"] = "join"
	if err := s.ws.Send(payload); err != nil {
		s.logger.Warn("private channel join failed",
			logging.String("exchange", Name),
			logging.Error(err),
		)
		return
	}
	s.logger.Info("joined private user stream channel", logging.String("exchange", Name))
}

// userFrame is the envelope of a private channel message. The event name
// arrives as "event" or its short form "e"; the payload under "data" may be
// a single object or a list.
type userFrame struct {
	Event      string          `json:"event"`
	EventShort string          `json:"e"`
	Data       json.RawMessage `json:"data"`
}

func (s *UserStreamSource) handleFrame(message []byte) {
	var frame userFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		s.logger.Debug("undecodable user stream frame",
			logging.String("exchange", Name),
			logging.Error(err),
		)
		return
	}

	eventType := frame.Event
	if eventType == "" {
		eventType = frame.EventShort
	}
	data := frame.Data
	if len(data) == 0 {
		data = message
	}

	event := interfaces.StreamEvent{
		Channel:   eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
	switch eventType {
	case eventOrderUpdate:
		event.Kind = interfaces.EventOrderUpdate
	case eventTradeUpdate:
		event.Kind = interfaces.EventTradeUpdate
	case eventBalanceUpdate:
		event.Kind = interfaces.EventBalanceUpdate
	default:
		// non-empty but unknown payloads are forwarded, not dropped
		event.Kind = interfaces.EventUnrecognized
	}

	select {
	case s.out <- event:
	case <-s.ctx.Done():
	}
}
