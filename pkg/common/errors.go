package common

import (
	"encoding/json"
	"errors"
	"fmt"
)

// APIError is returned by RESTClient for non-2xx responses. Code and Message
// are decoded from the exchange error body when present; Body preserves the
// raw payload for callers that need the original text (order-not-found
// detection falls back to string matching when no structured code exists).
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Code != "" || e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.Status, truncate(e.Body, 256))
}

// AsAPIError unwraps err looking for an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err carries an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == status
}

// parseAPIError builds an APIError from a response body. Exchanges disagree
// on the envelope: some return {"code": ..., "message": ...}, some
// {"status": ..., "message": ...} and some plain text. All variants fold into
// the same structure; unparseable bodies keep only the raw bytes.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}

	var envelope struct {
		Code    json.Number `json:"code"`
		Status  json.Number `json:"status"`
		Message string      `json:"message"`
		Error   string      `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Code != "" {
			apiErr.Code = envelope.Code.String()
		} else if envelope.Status != "" {
			apiErr.Code = envelope.Status.String()
		}
		if envelope.Message != "" {
			apiErr.Message = envelope.Message
		} else if envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
	}

	return apiErr
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
