package wazirx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/veiloq/trading-connectors/pkg/common"
	"github.com/veiloq/trading-connectors/pkg/exchanges/interfaces"
)

// RecvWindow is the clock-skew tolerance sent with every signed request.
const RecvWindow = 60000

// Auth signs WazirX private REST calls. The signature is an HMAC-SHA256
// hex digest over the parameter string "k1=v1&k2=v2&..." assembled in
// insertion order with values unescaped, with recvWindow and a monotonic
// millisecond timestamp appended and the signature itself attached as the
// final parameter. GET requests carry the signed string as the query;
// POST and DELETE carry it form-encoded in the body.
type Auth struct {
	apiKey string
	secret []byte
	clock  *common.MillisecondClock
}

// NewAuth creates an authenticator. The clock may be nil to use the local
// wall clock; a host with a time synchronizer plugs it in through
// common.NewMillisecondClock.
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
	params := req.Form
	if req.Method == http.MethodGet {
		params = req.Query
	}

	signed := make(common.Params, 0, len(params)+3)
	signed = append(signed, params...)
	signed.Add("recvWindow", strconv.Itoa(RecvWindow))
	signed.Add("timestamp", strconv.FormatInt(a.clock.Next(), 10))

	payload := paramString(signed)
	signed.Add("signature", a.sign(payload))
	final := paramString(signed)

	if req.Method == http.MethodGet {
		req.RawQuery = final
	} else {
		req.Body = []byte(final)
		req.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Headers.Set("X-Api-Key", a.apiKey)
	return nil
}

func (a *Auth) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// paramString joins parameters in insertion order without URL escaping;
// the exchange verifies the signature against this exact form. WazirX
// symbols and values are plain lowercase tokens, so nothing needs
// escaping on the wire either.
func paramString(params common.Params) string {
	var buf []byte
	for i, p := range params {
		if i > 0 {
			buf = append(buf, '&')
		}
		buf = append(buf, p.Key...)
		buf = append(buf, '=')
		buf = append(buf, p.Value...)
	}
	return string(buf)
}
