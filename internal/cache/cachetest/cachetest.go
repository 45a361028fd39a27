// Package cachetest starts an in-process Redis for tests.
package cachetest

import (
	"testing"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// NewBus returns a bus backed by a fresh miniredis that is torn down with t.
func NewBus(t testing.TB) (*cache.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	bus, err := cache.NewRedisClient(mr.Host(), mr.Port(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus, mr
}
