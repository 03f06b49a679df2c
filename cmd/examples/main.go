// Spread monitor: periodically samples bid/ask spreads from a rate source
// and logs them. The source exchange, quote filter and sampling interval
// come from the environment (a .env file is loaded when present):
//
//	RATE_SOURCE       coindcx | wazirx | coinswitch (default coindcx)
//	QUOTE_TOKEN       quote asset filter, e.g. USDT or INR (default all)
//	SAMPLE_INTERVAL   Go duration between samples (default 30s)
//	COINSWITCH_API_KEY / COINSWITCH_API_SECRET  required for coinswitch
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/veiloq/trading-connectors/pkg/exchanges/coinswitch"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/rateoracle"
)

func main() {
	godotenv.Load()

	logger := logging.NewLogger()
	logger.SetLevel(logging.INFO)

	source, err := buildSource()
	if err != nil {
		logger.Error("failed to build rate source", logging.Error(err))
		os.Exit(1)
	}
	rates := rateoracle.NewCache(source, rateoracle.WithLogger(logger))

	quoteToken := os.Getenv("QUOTE_TOKEN")
	interval := 30 * time.Second
	if raw := os.Getenv("SAMPLE_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Error("invalid SAMPLE_INTERVAL", logging.Error(err))
			os.Exit(1)
		}
		interval = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("spread monitor started",
		logging.String("source", rates.Name()),
		logging.String("quote", quoteToken),
		logging.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sample(ctx, logger, rates, quoteToken)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample(ctx, logger, rates, quoteToken)
		}
	}
}

func sample(ctx context.Context, logger logging.Logger, rates *rateoracle.Cache, quoteToken string) {
	quotes, err := rates.BidAskPrices(ctx, quoteToken)
	if err != nil {
		logger.Error("failed to sample spreads", logging.Error(err))
		return
	}
	if len(quotes) == 0 {
		logger.Warn("no spreads available", logging.String("source", rates.Name()))
		return
	}
	for pair, quote := range quotes {
		logger.Info("spread sample",
			logging.String("pair", pair.String()),
			logging.String("bid", quote.Bid.String()),
			logging.String("ask", quote.Ask.String()),
			logging.String("mid", quote.Mid.String()),
			logging.String("spread_pct", quote.SpreadPct.StringFixed(4)),
		)
	}
}

func buildSource() (rateoracle.Source, error) {
	switch os.Getenv("RATE_SOURCE") {
	case "", "coindcx":
		return rateoracle.NewCoinDCXSource(nil)
	case "wazirx":
		return rateoracle.NewWazirXSource(nil)
	case "coinswitch":
		ex, err := coinswitch.New(coinswitch.Config{
			Options: &interfaces.ConnectorOptions{
				APIKey:    os.Getenv("COINSWITCH_API_KEY"),
				APISecret: os.Getenv("COINSWITCH_API_SECRET"),
			},
		})
		if err != nil {
			return nil, err
		}
		return rateoracle.NewCoinSwitchSource(ex), nil
	default:
		return nil, fmt.Errorf("unknown rate source %q", os.Getenv("RATE_SOURCE"))
	}
}
