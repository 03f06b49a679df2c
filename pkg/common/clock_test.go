package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMillisecondClockBumpsOnRepeatedInstant(t *testing.T) {
	frozen := time.UnixMilli(1700000000000)
	clock := NewMillisecondClock(func() time.Time { return frozen })

	assert.Equal(t, int64(1700000000000), clock.Next())
	assert.Equal(t, int64(1700000000001), clock.Next())
	assert.Equal(t, int64(1700000000002), clock.Next())
}

func TestMillisecondClockIgnoresBackwardJump(t *testing.T) {
	times := []time.Time{
		time.UnixMilli(1700000000500),
		time.UnixMilli(1700000000100), // clock stepped back
		time.UnixMilli(1700000000600),
	}
	i := 0
	clock := NewMillisecondClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	})

	assert.Equal(t, int64(1700000000500), clock.Next())
	assert.Equal(t, int64(1700000000501), clock.Next())
	assert.Equal(t, int64(1700000000600), clock.Next())
}

func TestMillisecondClockUniqueUnderConcurrency(t *testing.T) {
	clock := NewMillisecondClock(nil)

	const goroutines = 8
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				ts := clock.Next()
				mu.Lock()
				assert.False(t, seen[ts], "duplicate timestamp %d", ts)
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
