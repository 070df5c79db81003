// Package throttle provides a small time tracker for limiting the frequency
// of an action, such as repeated warning logs.
package throttle

import (
	"sync"
	"time"
)

// Throttler limits how often an action may run. It is safe for concurrent use.
type Throttler struct {
	mu       sync.Mutex
	interval time.Duration
	nextAt   time.Time
	now      func() time.Time
}

// New creates a throttler that allows one acquisition per interval.
func New(interval time.Duration) *Throttler {
	return &Throttler{
		interval: interval,
		now:      time.Now,
	}
}

// TryAcquire returns true if the action is allowed now, and updates the
// internal deadline so the next acquisition is deferred by the interval.
func (t *Throttler) TryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if !t.nextAt.IsZero() && now.Before(t.nextAt) {
		return false
	}
	t.nextAt = now.Add(t.interval)
	return true
}
