package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/veiloq/trading-connectors/pkg/logging"
	"github.com/veiloq/trading-connectors/pkg/ratelimit"
)

// Param is a single request parameter. Params preserve insertion order
// because some exchanges sign the parameter string exactly as assembled.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list.
type Params []Param

// Add appends a parameter, preserving insertion order.
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Encode renders the parameters as a query string in insertion order with
// URL escaping applied to values.
func (p Params) Encode() string {
	var buf bytes.Buffer
	for i, param := range p {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(param.Key))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(param.Value))
	}
	return buf.String()
}

// SignedRequest is the mutable request view handed to an Authenticator
// before dispatch. Authenticators add headers, inject timestamps, and may
// serialize the body themselves when the signature must cover the exact
// outgoing bytes; fields left empty are finalized by RESTClient with its
// defaults.
type SignedRequest struct {
	Method string
	Path   string

	// Query holds query-string parameters, Form the form body parameters
	// and JSONBody the JSON body. A request uses at most one body kind.
	Query    Params
	Form     Params
	JSONBody map[string]any

	// Headers to attach to the outgoing request.
	Headers http.Header

	// Body is the serialized request body. When nil after authentication,
	// RESTClient serializes JSONBody (compact JSON) or Form.
	Body []byte

	// RawQuery is the final query string. When empty, RESTClient encodes
	// Query.
	RawQuery string
}

// Authenticator mutates a request to satisfy an exchange's signing scheme.
type Authenticator interface {
	Authenticate(req *SignedRequest) error
}

// Call describes a single REST invocation against an exchange endpoint.
type Call struct {
	Method string
	Path   string

	// BaseURL overrides the client's base URL for this call. CoinDCX serves
	// market data from a separate public host.
	BaseURL string

	Query    Params
	Form     Params
	JSONBody map[string]any

	// LimitID selects the rate limit rule; defaults to Path.
	LimitID string

	// Authenticated routes the request through the Authenticator.
	Authenticated bool
}

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL string
	HTTP    HTTPClient
	Auth    Authenticator
	Limits  *ratelimit.Registry
	Logger  logging.Logger
}

// RESTClient executes exchange REST calls: it waits on the endpoint's rate
// limit rule, applies authentication, dispatches through the retrying HTTP
// client and converts non-2xx responses into *APIError values.
type RESTClient struct {
	baseURL string
	http    HTTPClient
	auth    Authenticator
	limits  *ratelimit.Registry
	logger  logging.Logger
}

// NewRESTClient creates a REST client. HTTP defaults to a client with
// DefaultConfig, Logger to the standard JSON logger.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &RESTClient{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		auth:    cfg.Auth,
		limits:  cfg.Limits,
		logger:  logger,
	}
}

// Execute performs the call and returns the raw response body.
func (c *RESTClient) Execute(ctx context.Context, call Call) (json.RawMessage, error) {
	limitID := call.LimitID
	if limitID == "" {
		limitID = call.Path
	}
	if c.limits != nil {
		if err := c.limits.Wait(ctx, limitID); err != nil {
			return nil, fmt.Errorf("rate limit wait for %s: %w", limitID, err)
		}
	}

	signed := &SignedRequest{
		Method:   call.Method,
		Path:     call.Path,
		Query:    call.Query,
		Form:     call.Form,
		JSONBody: call.JSONBody,
		Headers:  make(http.Header),
	}

	if call.Authenticated {
		if c.auth == nil {
			return nil, fmt.Errorf("authenticated call to %s without an authenticator", call.Path)
		}
		if err := c.auth.Authenticate(signed); err != nil {
			return nil, fmt.Errorf("authenticating %s %s: %w", call.Method, call.Path, err)
		}
	}

	if err := c.finalize(signed); err != nil {
		return nil, err
	}

	base := call.BaseURL
	if base == "" {
		base = c.baseURL
	}
	fullURL := base + signed.Path
	if signed.RawQuery != "" {
		fullURL += "?" + signed.RawQuery
	}

	var bodyReader io.Reader
	if signed.Body != nil {
		bodyReader = bytes.NewReader(signed.Body)
	}
	req, err := http.NewRequestWithContext(ctx, signed.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", call.Path, err)
	}
	for key, values := range signed.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", call.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, body)
		c.logger.Debug("exchange request rejected",
			logging.String("method", signed.Method),
			logging.String("path", signed.Path),
			logging.Int("status", resp.StatusCode),
		)
		return nil, apiErr
	}

	return body, nil
}

// finalize fills in the body and query string for requests the authenticator
// did not serialize itself.
func (c *RESTClient) finalize(signed *SignedRequest) error {
	if signed.Body == nil {
		switch {
		case signed.JSONBody != nil:
			data, err := json.Marshal(signed.JSONBody)
			if err != nil {
				return fmt.Errorf("marshaling body for %s: %w", signed.Path, err)
			}
			signed.Body = data
			if signed.Headers.Get("Content-Type") == "" {
				signed.Headers.Set("Content-Type", "application/json")
			}
		case len(signed.Form) > 0:
			signed.Body = []byte(signed.Form.Encode())
			if signed.Headers.Get("Content-Type") == "" {
				signed.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		}
	}
	if signed.RawQuery == "" && len(signed.Query) > 0 {
		signed.RawQuery = signed.Query.Encode()
	}
	return nil
}
