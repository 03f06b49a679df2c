package coinswitch

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
)

// RFC 8032 test vector 1 seed.
const testSeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cace7f8"

func frozenClock(ms int64) *common.MillisecondClock {
	return common.NewMillisecondClock(func() time.Time { return time.UnixMilli(ms) })
}

func testPublicKey(t *testing.T) ed25519.PublicKey {
	t.Helper()
	seed, err := hex.DecodeString(testSeed)
	require.NoError(t, err)
	return ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
}

func verifySignature(t *testing.T, req *common.SignedRequest, message string) {
	t.Helper()
	sig, err := hex.DecodeString(req.Headers.Get("X-AUTH-SIGNATURE"))
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(testPublicKey(t), []byte(message), sig),
		"signature does not cover %q", message)
}

func TestNewAuthRejectsBadCredentials(t *testing.T) {
	_, err := NewAuth("", testSeed, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)

	_, err = NewAuth("key", "", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidCredentials)

	_, err = NewAuth("key", "not-hex", nil)
	assert.Error(t, err)

	_, err = NewAuth("key", "deadbeef", nil)
	assert.Error(t, err, "short seeds must be rejected")
}

func TestAuthenticateGETSignsSortedUnescapedQuery(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	var query common.Params
	query.Add("symbol", "BTC/INR")
	query.Add("exchange", "coinswitchx")
	req := &common.SignedRequest{
		Method:  http.MethodGet,
		Path:    DepthPath,
		Query:   query,
		Headers: make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	// keys sorted, values unescaped, epoch appended
	verifySignature(t, req,
		"GET"+DepthPath+"?exchange=coinswitchx&symbol=BTC/INR"+"1700000000000")
	assert.Equal(t, "1700000000000", req.Headers.Get("X-AUTH-EPOCH"))
	assert.Equal(t, "test-key", req.Headers.Get("X-AUTH-APIKEY"))
	assert.Equal(t, "exchange=coinswitchx&symbol=BTC%2FINR", req.RawQuery)
}

func TestAuthenticateGETWithoutQuery(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:  http.MethodGet,
		Path:    PortfolioPath,
		Headers: make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	verifySignature(t, req, "GET"+PortfolioPath+"1700000000000")
	assert.Empty(t, req.RawQuery)
}

func TestAuthenticatePOSTSignsSortedBody(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method: http.MethodPost,
		Path:   OrderPath,
		JSONBody: map[string]any{
			"symbol": "BTC/INR",
			"side":   "buy",
		},
		Headers: make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	assert.Equal(t, `{"side":"buy","symbol":"BTC/INR"}`, string(req.Body))
	verifySignature(t, req, "POST"+OrderPath+`{"side":"buy","symbol":"BTC/INR"}`)
	assert.Empty(t, req.Headers.Get("X-AUTH-EPOCH"), "POST sends no epoch header")
}

func TestAuthenticateDELETESignsBody(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:   http.MethodDelete,
		Path:     OrderPath,
		JSONBody: map[string]any{"order_id": "abc-123"},
		Headers:  make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	assert.Equal(t, `{"order_id":"abc-123"}`, string(req.Body))
	verifySignature(t, req, "DELETE"+OrderPath+`{"order_id":"abc-123"}`)
}

func TestAuthenticateEmptyBodyShipsBracesSignsEmpty(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	req := &common.SignedRequest{
		Method:  http.MethodPost,
		Path:    OrderPath,
		Headers: make(http.Header),
	}
	require.NoError(t, auth.Authenticate(req))

	assert.Equal(t, "{}", string(req.Body))
	verifySignature(t, req, "POST"+OrderPath)
}

func TestAuthenticateEpochsAreMonotonic(t *testing.T) {
	auth, err := NewAuth("test-key", testSeed, frozenClock(1700000000000))
	require.NoError(t, err)

	first := &common.SignedRequest{Method: http.MethodGet, Path: PingPath, Headers: make(http.Header)}
	second := &common.SignedRequest{Method: http.MethodGet, Path: PingPath, Headers: make(http.Header)}
	require.NoError(t, auth.Authenticate(first))
	require.NoError(t, auth.Authenticate(second))

	assert.Equal(t, "1700000000000", first.Headers.Get("X-AUTH-EPOCH"))
	assert.Equal(t, "1700000000001", second.Headers.Get("X-AUTH-EPOCH"))
}
