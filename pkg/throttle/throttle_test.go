package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottler_TryAcquire(t *testing.T) {
	now := time.Now()
	th := New(10 * time.Millisecond)
	th.now = func() time.Time { return now }

	assert.True(t, th.TryAcquire())
	assert.False(t, th.TryAcquire())
	assert.False(t, th.TryAcquire())

	now = now.Add(10 * time.Millisecond)
	assert.True(t, th.TryAcquire())
	assert.False(t, th.TryAcquire())
}

func TestThrottler_FirstAcquireAlwaysAllowed(t *testing.T) {
	th := New(time.Hour)
	assert.True(t, th.TryAcquire())
	assert.False(t, th.TryAcquire())
}
