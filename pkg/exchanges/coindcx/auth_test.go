package coindcx

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
)

func frozenClock(ms int64) *common.MillisecondClock {
	return common.NewMillisecondClock(func() time.Time { return time.UnixMilli(ms) })
}

func TestNewAuthRejectsEmptyCredentials(t *testing.T) {
	_, err := NewAuth("", "secret", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)

	_, err = NewAuth("key", "", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)
}

func TestAuthenticateSignsExactBody(t *testing.T) {
	auth, err := NewAuth("test-key", "test-secret", frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:   http.MethodPost,
		Path:     CreateOrderPath,
		JSONBody: map[string]any{"market": "BTCUSDT", "side": "buy"},
		Headers:  make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	assert.Equal(t, `{"market":"BTCUSDT","side":"buy","timestamp":1700000000000}`, string(req.Body))
	assert.Equal(t, "test-key", req.Headers.Get("X-AUTH-APIKEY"))
	assert.Equal(t,
		"0e0bc198a114a65868d35da8ed42c8b876798942bfbb3bf0604c01a08bb73c69",
		req.Headers.Get("X-AUTH-SIGNATURE"))
	assert.Equal(t, "application/json", req.Headers.Get("Content-Type"))
}

func TestAuthenticateEmptyBodyStillSigned(t *testing.T) {
	auth, err := NewAuth("test-key", "test-secret", frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:  http.MethodPost,
		Path:    UserBalancesPath,
		Headers: make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	assert.Equal(t, `{"timestamp":1700000000000}`, string(req.Body))
	assert.Equal(t,
		"67332dd108edaf5183991cfff880ca9b30de11e502b1a6914b1c100431868cd1",
		req.Headers.Get("X-AUTH-SIGNATURE"))
}

func TestAuthenticateRejectsNonPOST(t *testing.T) {
	auth, err := NewAuth("test-key", "test-secret", nil)
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:  http.MethodGet,
		Path:    MarketsDetailsPath,
		Headers: make(http.Header),
	}
	assert.Error(t, auth.Authenticate(req))
}

func TestAuthenticateTimestampsAreMonotonic(t *testing.T) {
	auth, err := NewAuth("test-key", "test-secret", frozenClock(1700000000000))
	require.NoError(t, err)

	first := &common.SignedRequest{Method: http.MethodPost, Headers: make(http.Header)}
	second := &common.SignedRequest{Method: http.MethodPost, Headers: make(http.Header)}
	require.NoError(t, auth.Authenticate(first))
	require.NoError(t, auth.Authenticate(second))

	assert.Equal(t, `{"timestamp":1700000000000}`, string(first.Body))
	assert.Equal(t, `{"timestamp":1700000000001}`, string(second.Body))
}

func TestWSJoinPayload(t *testing.T) {
	auth, err := NewAuth("test-key", "test-secret", nil)
	require.NoError(t, err)

	payload := auth.WSJoinPayload()
	assert.Equal(t, "coindcx", payload["channelName"])
	assert.Equal(t, "test-key", payload["apiKey"])
	// signature covers the compact JSON {"channel":"coindcx"}
	assert.Equal(t,
		"18f6aec0d6f9c971f53819fe72cf441d2d2c452193022704450e4dddaa8aad5a",
		payload["authSignature"])
}
