// Package tradingconnectors provides spot-trading adapters for Indian
// cryptocurrency exchanges behind one normalized surface.
//
// Each adapter in pkg/exchanges (CoinDCX, CoinSwitch, WazirX) speaks its
// venue's REST dialect - signing scheme, symbol convention, payload
// shapes, rate limit tables - and exposes the shared vocabulary of
// pkg/exchanges/interfaces: order placement and cancellation, order and
// trade status, balances, trading rules, order book and user stream
// sources.
//
// Core pieces:
//
//   - pkg/exchanges/interfaces: adapter contract, order tracker, balance
//     tracker, reconciliation loop, normalized order states
//   - pkg/exchanges/coindcx: HMAC body signing, push websocket streams
//   - pkg/exchanges/coinswitch: Ed25519 signing, venue routing, poll-mode
//     streams
//   - pkg/exchanges/wazirx: HMAC form signing, poll-mode streams
//   - pkg/rateoracle: per-venue mid and bid/ask rate sources with a TTL
//     cache
//   - pkg/common: REST client with retry, rate limiting and error
//     normalization; monotonic millisecond clock
//   - pkg/ratelimit: weighted linked-pool request budgets
//   - pkg/websocket: reconnecting websocket client
//   - pkg/symbols: native symbol <-> canonical pair bijections
//
// A minimal trading session:
//
//	ex, err := coindcx.New(coindcx.Config{
//	    Options: &interfaces.ConnectorOptions{
//	        APIKey:    os.Getenv("COINDCX_API_KEY"),
//	        APISecret: os.Getenv("COINDCX_API_SECRET"),
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ack, err := ex.PlaceOrder(ctx, interfaces.OrderRequest{
//	    ClientOrderID: ex.NewClientOrderID(),
//	    Pair:          symbols.NewPair("BTC", "USDT"),
//	    Side:          interfaces.SideBuy,
//	    Type:          interfaces.TypeLimit,
//	    Price:         decimal.RequireFromString("50000"),
//	    Quantity:      decimal.RequireFromString("0.001"),
//	})
//
// Market data without credentials:
//
//	source, _ := rateoracle.NewWazirXSource(nil)
//	rates := rateoracle.NewCache(source)
//	quotes, _ := rates.BidAskPrices(ctx, "INR")
//
// Adapters fold stream events into their order tracker; hosts that need
// REST-side drift correction run interfaces.RunReconciliation against the
// same tracker.
package tradingconnectors
