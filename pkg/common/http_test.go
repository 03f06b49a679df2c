package common

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

func TestNewHTTPClientDefaultsMissingLogger(t *testing.T) {
	// A config without a logger must still survive the retry path: the
	// OnRetry callback logs every failed attempt.
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(&ClientConfig{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		RateLimit:  ratelimit.Rate{Limit: 1000, Interval: time.Second},
	})

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, requests)
}

// trackingBody records whether Close was called on a response body.
type trackingBody struct {
	io.Reader
	mu     *sync.Mutex
	closed *int
}

func (b trackingBody) Close() error {
	b.mu.Lock()
	*b.closed++
	b.mu.Unlock()
	return nil
}

// sequenceTransport serves a fixed sequence of status codes, each with a
// close-tracked body.
type sequenceTransport struct {
	mu       sync.Mutex
	statuses []int
	calls    int
	closed   []*int
}

func (tr *sequenceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	status := tr.statuses[tr.calls]
	tr.calls++
	counter := new(int)
	tr.closed = append(tr.closed, counter)
	return &http.Response{
		StatusCode: status,
		Body: trackingBody{
			Reader: strings.NewReader(`{}`),
			mu:     &tr.mu,
			closed: counter,
		},
		Header:  make(http.Header),
		Request: req,
	}, nil
}

func TestDoClosesRetriedResponseBodies(t *testing.T) {
	transport := &sequenceTransport{statuses: []int{502, 503, 200}}
	c := &client{
		config: &ClientConfig{
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		},
		httpClient: &http.Client{Transport: transport},
		limiter:    ratelimit.NewTokenBucketLimiter(ratelimit.Rate{Limit: 1000, Interval: time.Second}),
		logger:     DefaultConfig().Logger,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.test/depth", nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Equal(t, 3, transport.calls)
	assert.Equal(t, 1, *transport.closed[0], "first attempt's body must be closed before retrying")
	assert.Equal(t, 1, *transport.closed[1], "second attempt's body must be closed before retrying")
	assert.Equal(t, 1, *transport.closed[2], "caller owns the final body")
}
