package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Weight links a rule to a shared pool rule and the cost charged against it
// per call. A weight of 3 consumes three tokens from the pool bucket.
type Weight struct {
	ID     string
	Weight int
}

// Rule describes the rate limit for a single endpoint or shared pool.
// Exchange packages publish their limits as []Rule tables in their
// constants files.
type Rule struct {
	// ID identifies the rule. Endpoint rules conventionally use the REST
	// path as the id; pool rules use an uppercase name such as
	// "REQUEST_WEIGHT".
	ID string

	// Limit and Interval define the bucket for this rule.
	Limit    int
	Interval time.Duration

	// Linked lists pool rules also charged when this rule is consumed.
	Linked []Weight
}

// Registry holds one token bucket per rule and resolves linked pool
// charges. It is safe for concurrent use; the rule set is fixed at
// construction.
type Registry struct {
	rules    map[string]Rule
	limiters map[string]RateLimiter
}

// NewRegistry builds a registry from a rule table. Duplicate rule ids and
// links to undeclared pool rules are rejected so malformed tables fail at
// startup rather than silently skipping limits.
func NewRegistry(rules []Rule) (*Registry, error) {
	r := &Registry{
		rules:    make(map[string]Rule, len(rules)),
		limiters: make(map[string]RateLimiter, len(rules)),
	}

	for _, rule := range rules {
		if rule.Limit <= 0 || rule.Interval <= 0 {
			return nil, fmt.Errorf("invalid rule %q: limit=%d interval=%v", rule.ID, rule.Limit, rule.Interval)
		}
		if _, exists := r.rules[rule.ID]; exists {
			return nil, fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		r.rules[rule.ID] = rule
		r.limiters[rule.ID] = NewTokenBucketLimiter(Rate{Limit: rule.Limit, Interval: rule.Interval})
	}

	for _, rule := range rules {
		for _, link := range rule.Linked {
			if _, exists := r.rules[link.ID]; !exists {
				return nil, fmt.Errorf("rule %q links to undeclared pool %q", rule.ID, link.ID)
			}
		}
	}

	return r, nil
}

// Wait blocks until the rule's bucket and every linked pool bucket permit the
// call, or the context is cancelled. Unknown ids pass through immediately so
// endpoints without a published limit are never blocked.
func (r *Registry) Wait(ctx context.Context, id string) error {
	rule, ok := r.rules[id]
	if !ok {
		return ctx.Err()
	}

	if err := r.limiters[id].Wait(ctx); err != nil {
		return err
	}

	for _, link := range rule.Linked {
		pool := r.limiters[link.ID]
		weight := link.Weight
		if weight < 1 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			if err := pool.Wait(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// Rules returns the rule for an id, for inspection in tests and diagnostics.
func (r *Registry) Rule(id string) (Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}
