// Package ratelimit controls the pace of outbound exchange API requests.
//
// It offers two layers. The RateLimiter interface wraps Uber's token bucket
// limiter and is used wherever a single pacing knob is enough (the shared
// HTTP client, WebSocket connect attempts). On top of that, Registry consumes
// the declarative per-endpoint Rule tables each exchange package publishes:
// every REST endpoint carries its own bucket, and a rule may additionally
// link to pool rules (a global request-weight pool, an order-action pool)
// that are charged a configured weight per call.
//
// Architecture Integration:
//
//   - pkg/common: the HTTP client waits on a limiter before dispatching, and
//     RESTClient waits on the Registry entry for the endpoint being called
//
//   - pkg/exchanges/*: each exchange package defines its Rule table in its
//     constants file, mirroring the limits published by the exchange
//
// Rules are immutable after registry construction; unknown rule ids pass
// through without waiting so public endpoints without published limits are
// never blocked.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a rate limit configuration: Limit operations allowed per Interval.
type Rate struct {
	// Limit is the maximum number of operations allowed within the interval.
	Limit int

	// Interval is the time window over which the limit applies.
	Interval time.Duration
}

// RateLimiter paces operations by forcing callers to wait when necessary
// to comply with the configured rate.
type RateLimiter interface {
	// Wait blocks until an operation is permitted or the context is cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the rate configuration. It returns an error for
	// non-positive limits or intervals.
	SetLimit(limit Rate) error
}

// uberLimiter implements RateLimiter on Uber's token bucket limiter.
type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a rate limiter backed by Uber's token bucket
// implementation. The Rate is converted to operations per second, e.g. 120
// per minute becomes 2 per second. Rates below one per second are clamped to
// one per second.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &uberLimiter{
		limiter: ratelimit.New(ratePerSecond(rate)),
		rate:    rate,
	}
}

func ratePerSecond(rate Rate) int {
	rps := int(float64(rate.Limit) / rate.Interval.Seconds())
	if rps < 1 {
		rps = 1
	}
	return rps
}

// Wait blocks until a token is available or the context has been cancelled.
func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

// SetLimit replaces the underlying limiter with one built for the new rate.
func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.limiter = ratelimit.New(ratePerSecond(rate))
	l.rate = rate
	return nil
}
