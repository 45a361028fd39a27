package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/cache/cachetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	bus, _ := cachetest.NewBus(t)
	_, err := bus.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestSetExExpires(t *testing.T) {
	bus, mr := cachetest.NewBus(t)
	ctx := context.Background()

	require.NoError(t, bus.SetEx(ctx, "k", "v", 10*time.Second))
	ok, err := bus.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(11 * time.Second)
	ok, err = bus.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDrainListIsFIFOAndExhausts(t *testing.T) {
	bus, mr := cachetest.NewBus(t)
	ctx := context.Background()

	require.NoError(t, bus.RPushEx(ctx, "q", time.Hour, "a"))
	require.NoError(t, bus.RPushEx(ctx, "q", time.Hour, "b", "c"))
	assert.Equal(t, time.Hour, mr.TTL("q"))

	items, err := bus.DrainList(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, items)

	items, err = bus.DrainList(ctx, "q")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, mr.Exists("q"))
}

func TestSortedSetOps(t *testing.T) {
	bus, _ := cachetest.NewBus(t)
	ctx := context.Background()

	require.NoError(t, bus.ZAdd(ctx, "z", 1, "a"))
	require.NoError(t, bus.ZAdd(ctx, "z", 5, "b"))
	require.NoError(t, bus.ZRemRangeByScore(ctx, "z", "-inf", "2"))

	members, err := bus.ZRange(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	n, err := bus.ZCard(ctx, "z")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPublishSubscribe(t *testing.T) {
	bus, _ := cachetest.NewBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "one", "two")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "two", "hello"))

	select {
	case msg := <-sub.Messages():
		assert.Equal(t, "two", msg.Channel)
		assert.Equal(t, "hello", msg.Payload)
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())

	_, open := <-sub.Messages()
	assert.False(t, open)
}
