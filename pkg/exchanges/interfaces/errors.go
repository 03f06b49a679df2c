package interfaces

import (
	"errors"
	"fmt"
)

// Common error variables that exchange adapters may return
var (
	// ErrNotConnected is returned when an operation is attempted on an
	// adapter whose data streams are not running
	ErrNotConnected = errors.New("exchange connector not connected")

	// ErrUnknownPair is returned when a pair has no mapping to an
	// exchange-native symbol
	ErrUnknownPair = errors.New("unknown trading pair")

	// ErrRateLimitExceeded is returned when the exchange rate limit is exceeded
	ErrRateLimitExceeded = errors.New("exchange rate limit exceeded")

	// ErrInvalidCredentials is returned when API credentials are missing or
	// cannot be decoded
	ErrInvalidCredentials = errors.New("invalid API credentials")

	// ErrSubscriptionFailed is returned when a WebSocket channel join cannot
	// be established
	ErrSubscriptionFailed = errors.New("failed to establish subscription")

	// ErrOrderNotTracked is returned when an update references an order the
	// tracker does not hold
	ErrOrderNotTracked = errors.New("order not tracked")

	// ErrExchangeUnavailable is returned when the exchange API is unavailable
	ErrExchangeUnavailable = errors.New("exchange API unavailable")
)

// PairError represents a pair-specific error condition
type PairError struct {
	Pair    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *PairError) Error() string {
	return fmt.Sprintf("pair error for %s: %s", e.Pair, e.Message)
}

// Unwrap returns the underlying error
func (e *PairError) Unwrap() error {
	return e.Err
}

// NewPairError creates a new pair-specific error
func NewPairError(pair, message string, err error) error {
	return &PairError{
		Pair:    pair,
		Message: message,
		Err:     err,
	}
}
