package coindcx

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/symbols"
	"github.com/veiloq/trading-connectors/pkg/websocket"
)

// BookSourceConfig assembles an OrderBookSource.
type BookSourceConfig struct {
	Pairs   []symbols.Pair
	Options *interfaces.ConnectorOptions
	Logger  logging.Logger

	// WS overrides the connector, for tests against the mock server.
	WS websocket.WSConnector
}

// OrderBookSource streams depth and trade messages for a fixed set of pairs
// over one websocket connection to the stream endpoint. Channels are joined
// explicitly and re-joined after every reconnect.
type OrderBookSource struct {
	pairs  []symbols.Pair
	ws     websocket.WSConnector
	logger logging.Logger

	out chan<- interfaces.BookMessage
	ctx context.Context
}

// NewOrderBookSource creates a push-mode book source.
func NewOrderBookSource(cfg BookSourceConfig) *OrderBookSource {
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
	return &OrderBookSource{
		pairs:  cfg.Pairs,
		ws:     ws,
		logger: logger,
	}
}

// Run implements interfaces.BookSource. It blocks until ctx is cancelled.
func (s *OrderBookSource) Run(ctx context.Context, out chan<- interfaces.BookMessage) error {
	s.out = out
	s.ctx = ctx

	s.ws.SetRawHandler(s.handleFrame)
	s.ws.SetConnectHandler(s.joinChannels)

	if err := s.ws.Connect(ctx); err != nil {
		return err
	}
	defer s.ws.Close()

	<-ctx.Done()
	return ctx.Err()
}

// joinChannels sends the orderbook and trades joins for every tracked pair.
// Runs on every connect, so a reconnect restores the full subscription set.
func (s *OrderBookSource) joinChannels() {
	for _, pair := range s.pairs {
		publicPair := PublicPair(pair)
		for _, channel := range []string{
			publicPair + "@orderbook@20",
			publicPair + "@trades",
		} {
			err := s.ws.Send(map[string]any{
				"type":        "join",
				"channelName": channel,
			})
			if err != nil {
				s.logger.Warn("channel join failed",
					logging.String("exchange", Name),
					logging.String("channel", channel),
					logging.Error(err),
				)
			}
		}
	}
	s.logger.Info("joined order book and trade channels",
		logging.String("exchange", Name),
		logging.Int("pairs", len(s.pairs)),
	)
}

// depthFrame is the wire shape of an orderbook channel message: bids and
// asks arrive as price -> quantity maps plus a version counter.
type depthFrame struct {
	Channel string                 `json:"channel"`
	TS      json.Number            `json:"ts"`
	Version *int64                 `json:"vs"`
	Bids    map[string]json.Number `json:"bids"`
	Asks    map[string]json.Number `json:"asks"`
}

// tradeFrame is the wire shape of a trades channel message (also returned
// by the public trade history endpoint).
type tradeFrame struct {
	Price     json.Number `json:"p"`
	Quantity  json.Number `json:"q"`
	Timestamp json.Number `json:"T"`
	IsMaker   json.Number `json:"m"`
	Symbol    string      `json:"s"`
}

func (f tradeFrame) toMessage(pair symbols.Pair) interfaces.BookMessage {
	price, _ := parseNumber(f.Price)
	qty, _ := parseNumber(f.Quantity)
	ts := msToTime(f.Timestamp)
	return interfaces.BookMessage{
		Kind:          interfaces.BookTrade,
		Pair:          pair,
		UpdateID:      ts.UnixMilli(),
		TradeID:       f.Timestamp.String(),
		TradePrice:    price,
		TradeQuantity: qty,
		IsBuyerMaker:  f.IsMaker.String() == "1" || f.IsMaker.String() == "true",
		Timestamp:     ts,
	}
}

// handleFrame demuxes one raw frame. Trade frames are recognized by their
// p/q/T keys, depth frames by bids or asks; anything else is dropped.
func (s *OrderBookSource) handleFrame(message []byte) {
	var trade tradeFrame
	if err := json.Unmarshal(message, &trade); err == nil &&
		trade.Price != "" && trade.Quantity != "" && trade.Timestamp != "" {
		pair, ok := s.pairForSymbol(trade.Symbol)
		if !ok {
			return
		}
		s.emit(trade.toMessage(pair))
		return
	}

	var depth depthFrame
	if err := json.Unmarshal(message, &depth); err != nil {
		s.logger.Debug("undecodable stream frame", logging.String("exchange", Name), logging.Error(err))
		return
	}
	if depth.Bids == nil && depth.Asks == nil {
		return
	}

	channelPair, _, _ := strings.Cut(depth.Channel, "@")
	pair, ok := pairFromPublic(channelPair)
	if !ok {
		return
	}

	msg := interfaces.BookMessage{
		Kind:      interfaces.BookDiff,
		Pair:      pair,
		Bids:      levelsFromMap(depth.Bids, true),
		Asks:      levelsFromMap(depth.Asks, false),
		Timestamp: msToTime(depth.TS),
	}
	if depth.Version != nil {
		msg.UpdateID = *depth.Version
	} else {
		// weak ordering: no version counter on this channel, fall back to
		// the event timestamp
		msg.UpdateID = msg.Timestamp.UnixMilli()
	}
	s.emit(msg)
}

// pairForSymbol resolves the "s" field, which carries either the channel
// pair form (B-BTC_USDT) or a bare concatenated symbol matched against the
// tracked pairs.
func (s *OrderBookSource) pairForSymbol(symbol string) (symbols.Pair, bool) {
	if pair, ok := pairFromPublic(symbol); ok {
		return pair, true
	}
	for _, pair := range s.pairs {
		if strings.EqualFold(symbol, pair.Base+pair.Quote) {
			return pair, true
		}
	}
	return symbols.Pair{}, false
}

func (s *OrderBookSource) emit(msg interfaces.BookMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}
