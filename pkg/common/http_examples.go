package common

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

// RESTClientExample demonstrates calling a public market-data endpoint
// through a RESTClient with an endpoint rate limit table.
func RESTClientExample() {
	limits, err := ratelimit.NewRegistry([]ratelimit.Rule{
		{ID: "/market_data/orderbook", Limit: 2000, Interval: time.Minute},
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	client := NewRESTClient(RESTConfig{
		BaseURL: "https://public.coindcx.com",
		Limits:  limits,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var query Params
	query.Add("pair", "B-BTC_USDT")

	body, err := client.Execute(ctx, Call{
		Method: http.MethodGet,
		Path:   "/market_data/orderbook",
		Query:  query,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Order book response: %d bytes\n", len(body))
}

// DebugRESTClientExample demonstrates wiring the debug HTTP client under a
// RESTClient to dump signed request and response traffic while developing
// against a new endpoint.
func DebugRESTClientExample(auth Authenticator) {
	debugHTTP := NewDebugHTTPClient(&DebugClientConfig{
		ClientConfig: &ClientConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			RetryDelay: 500 * time.Millisecond,
			RateLimit:  ratelimit.Rate{Limit: 10, Interval: time.Second},
			Logger: logging.NewZapLogger(
				logging.WithDebugLevel(),
				logging.WithDevelopmentMode(),
			),
		},
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLogSize:  8192,
	})

	client := NewRESTClient(RESTConfig{
		BaseURL: "https://api.coindcx.com",
		HTTP:    debugHTTP,
		Auth:    auth,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := client.Execute(ctx, Call{
		Method:        http.MethodPost,
		Path:          "/exchange/v1/users/balances",
		JSONBody:      map[string]any{},
		Authenticated: true,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Balances response: %d bytes\n", len(body))
}
