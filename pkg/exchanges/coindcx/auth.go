package coindcx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
)

// Auth signs CoinDCX private REST calls and produces the websocket join
// payload for the private channel.
//
// CoinDCX authenticates POST requests only: a millisecond timestamp is
// injected into the JSON body, the body is serialized compactly, and the
// signature is an HMAC-SHA256 hex digest over those exact bytes. The same
// serialized bytes must go on the wire, so Authenticate sets the request
// body itself instead of leaving serialization to the client.
type Auth struct {
	apiKey string
	secret []byte
	clock  *common.MillisecondClock
}

// NewAuth creates an authenticator. The clock may be nil to use the local
// wall clock.
func NewAuth(apiKey, secretKey string, clock *common.MillisecondClock) (*Auth, error) {
	if apiKey == "" || secretKey == "" {
		return nil, interfaces.ErrInvalidCredentials
	}
	if clock == nil {
		clock = common.NewMillisecondClock(nil)
	}
	return &Auth{
		apiKey: apiKey,
		secret: []byte(secretKey),
		clock:  clock,
	}, nil
}

// Authenticate implements common.Authenticator.
func (a *Auth) Authenticate(req *common.SignedRequest) error {
	if req.Method != http.MethodPost {
		return fmt.Errorf("coindcx signs POST requests only, got %s %s", req.Method, req.Path)
	}

	body := req.JSONBody
	if body == nil {
		body = map[string]any{}
	}

	serialized, err := marshalWithTimestamp(body, a.clock.Next())
	if err != nil {
		return fmt.Errorf("serializing signed body for %s: %w", req.Path, err)
	}

	req.Body = serialized
	req.Headers.Set("Content-Type", "application/json")
	req.Headers.Set("X-AUTH-APIKEY", a.apiKey)
	req.Headers.Set("X-AUTH-SIGNATURE", a.sign(serialized))
	return nil
}

// WSJoinPayload builds the signed join payload for the private channel.
// The signature covers the compact JSON {"channel":"coindcx"}.
func (a *Auth) WSJoinPayload() map[string]any {
	payload := []byte(`{"channel":"` + privateChannel + `"}`)
	return map[string]any{
		"channelName":   privateChannel,
		"authSignature": a.sign(payload),
		"apiKey":        a.apiKey,
	}
}

func (a *Auth) sign(payload []byte) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// marshalWithTimestamp serializes the body compactly with the timestamp as
// the final key, matching the exchange's examples byte for byte.
func marshalWithTimestamp(body map[string]any, timestamp int64) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	ts := fmt.Sprintf(`"timestamp":%d}`, timestamp)
	if len(data) == 2 { // empty object
		return append(data[:1], ts...), nil
	}
	data[len(data)-1] = ','
	return append(data, ts...), nil
}
