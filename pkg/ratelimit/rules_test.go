package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{
			name:  "zero limit",
			rules: []Rule{{ID: "/orders", Limit: 0, Interval: time.Minute}},
		},
		{
			name:  "zero interval",
			rules: []Rule{{ID: "/orders", Limit: 10}},
		},
		{
			name: "duplicate id",
			rules: []Rule{
				{ID: "/orders", Limit: 10, Interval: time.Minute},
				{ID: "/orders", Limit: 20, Interval: time.Minute},
			},
		},
		{
			name: "undeclared pool link",
			rules: []Rule{
				{ID: "/orders", Limit: 10, Interval: time.Minute,
					Linked: []Weight{{ID: "REQUEST_WEIGHT", Weight: 1}}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.rules)
			assert.Error(t, err)
		})
	}
}

func TestRegistryWaitUnknownIDPassesThrough(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)

	start := time.Now()
	err = registry.Wait(context.Background(), "/unlisted")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestRegistryWaitChargesLinkedPools(t *testing.T) {
	registry, err := NewRegistry([]Rule{
		{ID: "REQUEST_WEIGHT", Limit: 10000, Interval: time.Minute},
		{ID: "/depth", Limit: 10000, Interval: time.Minute,
			Linked: []Weight{{ID: "REQUEST_WEIGHT", Weight: 10}}},
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, registry.Wait(context.Background(), "/depth"))
	}
}

func TestRegistryWaitCancelledContext(t *testing.T) {
	registry, err := NewRegistry([]Rule{
		{ID: "/orders", Limit: 1, Interval: time.Minute},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = registry.Wait(ctx, "/orders")
	assert.Error(t, err)
}

func TestRegistryRuleLookup(t *testing.T) {
	registry, err := NewRegistry([]Rule{
		{ID: "/orders", Limit: 100, Interval: 10 * time.Second},
	})
	require.NoError(t, err)

	rule, ok := registry.Rule("/orders")
	require.True(t, ok)
	assert.Equal(t, 100, rule.Limit)
	assert.Equal(t, 10*time.Second, rule.Interval)

	_, ok = registry.Rule("/missing")
	assert.False(t, ok)
}
