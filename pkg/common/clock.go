package common

import (
	"sync"
	"time"
)

// TimeProvider supplies wall-clock time. The default uses the local clock;
// hosts that synchronize against an exchange's server time can plug their
// own provider.
type TimeProvider func() time.Time

// MillisecondClock issues strictly increasing millisecond timestamps for
// request signing and nonces. When the wall clock has not advanced since the
// previous call (or moved backwards), the timestamp is bumped by one
// millisecond instead, so two rapid requests never sign with the same nonce.
type MillisecondClock struct {
	mu   sync.Mutex
	last int64
	now  TimeProvider
}

// NewMillisecondClock creates a clock using the given time provider, or the
// local clock when nil.
func NewMillisecondClock(now TimeProvider) *MillisecondClock {
	if now == nil {
		now = time.Now
	}
	return &MillisecondClock{now: now}
}

// Next returns the next timestamp in epoch milliseconds.
func (c *MillisecondClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UnixMilli()
	if ts <= c.last {
		ts = c.last + 1
	}
	c.last = ts
	return ts
}
