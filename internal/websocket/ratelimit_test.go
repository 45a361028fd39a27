package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(10, 20)
	r.now = func() time.Time { return now }
	r.lastTime = now

	for i := 0; i < 20; i++ {
		assert.True(t, r.Allow(), "burst message %d", i)
	}
	assert.False(t, r.Allow())

	now = now.Add(150 * time.Millisecond)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())

	now = now.Add(time.Hour)
	for i := 0; i < 20; i++ {
		assert.True(t, r.Allow())
	}
	assert.False(t, r.Allow(), "refill is capped at burst")
}
