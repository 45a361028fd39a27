package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/cache/cachetest"
	"github.com/agorahq/agora/backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub cache.Subscription) cache.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bus message")
		return cache.Message{}
	}
}

func TestDeliverFallsBackToQueue(t *testing.T) {
	ctx := context.Background()
	bus, _ := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	path := engine.Deliver(ctx, "u2", []byte(`{"title":"X"}`))
	assert.Equal(t, PathFallback, path)

	first, err := engine.DrainQueue(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.JSONEq(t, `{"title":"X"}`, string(first[0]))

	second, err := engine.DrainQueue(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestDeliverPublishesOnUserChannel(t *testing.T) {
	ctx := context.Background()
	bus, _ := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	sub, err := bus.Subscribe(ctx, cache.UserNotificationsChannel("u2"))
	require.NoError(t, err)
	defer sub.Close()

	engine.Deliver(ctx, "u2", []byte(`{"id":"n1"}`))

	msg := receive(t, sub)
	assert.Equal(t, cache.UserNotificationsChannel("u2"), msg.Channel)
	assert.JSONEq(t, `{"id":"n1"}`, msg.Payload)
}

func TestDeliverDirectSkipsQueue(t *testing.T) {
	ctx := context.Background()
	bus, mr := cachetest.NewBus(t)
	registry := websocket.NewRegistry(0)
	engine := NewEngine(registry, bus, time.Hour)

	ob := registry.Register("u3")
	msg := []byte(`{"type":"notification","id":"n1"}`)

	assert.Equal(t, PathDirect, engine.Deliver(ctx, "u3", msg))

	select {
	case got := <-ob.C():
		assert.Equal(t, msg, got)
	default:
		t.Fatal("message not on outbox")
	}
	assert.False(t, mr.Exists(cache.NotificationQueueKey("u3")))
}

func TestDeliverFallsBackWhenOutboxFull(t *testing.T) {
	ctx := context.Background()
	bus, _ := cachetest.NewBus(t)
	registry := websocket.NewRegistry(1)
	engine := NewEngine(registry, bus, time.Hour)

	registry.Register("u3")
	assert.Equal(t, PathDirect, engine.Deliver(ctx, "u3", []byte(`1`)))
	assert.Equal(t, PathFallback, engine.Deliver(ctx, "u3", []byte(`2`)))

	queued, err := engine.DrainQueue(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "2", string(queued[0]))
}

func TestQueueIsFIFOAndExpires(t *testing.T) {
	ctx := context.Background()
	bus, mr := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Minute)

	for _, p := range []string{`1`, `2`, `3`} {
		engine.Deliver(ctx, "u1", []byte(p))
	}
	assert.Equal(t, time.Minute, mr.TTL(cache.NotificationQueueKey("u1")))

	queued, err := engine.DrainQueue(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, "1", string(queued[0]))
	assert.Equal(t, "3", string(queued[2]))

	engine.Deliver(ctx, "u1", []byte(`4`))
	mr.FastForward(2 * time.Minute)
	queued, err = engine.DrainQueue(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestDeliverSurvivesBusOutage(t *testing.T) {
	ctx := context.Background()
	bus, mr := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	mr.Close()
	assert.NotPanics(t, func() {
		assert.Equal(t, PathFallback, engine.Deliver(ctx, "u1", []byte(`{}`)))
	})

	_, err := engine.DrainQueue(ctx, "u1")
	assert.Error(t, err)
}

func TestDeliverJSONRejectsUnencodable(t *testing.T) {
	bus, _ := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	assert.Equal(t, Path(""), engine.DeliverJSON(context.Background(), "u1", func() {}))
}

func TestBroadcasts(t *testing.T) {
	ctx := context.Background()
	bus, _ := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	sub, err := bus.Subscribe(ctx, cache.GlobalNotificationsChannel, cache.CommunityUpdatesChannel("c1"))
	require.NoError(t, err)
	defer sub.Close()

	engine.BroadcastGlobal(ctx, map[string]string{"type": "announcement"})
	engine.BroadcastCommunity(ctx, "c1", map[string]string{"type": "community_update"})

	seen := map[string]string{}
	for i := 0; i < 2; i++ {
		msg := receive(t, sub)
		seen[msg.Channel] = msg.Payload
	}
	assert.JSONEq(t, `{"type":"announcement"}`, seen[cache.GlobalNotificationsChannel])
	assert.JSONEq(t, `{"type":"community_update"}`, seen[cache.CommunityUpdatesChannel("c1")])
}

func TestPublishUnreadCount(t *testing.T) {
	ctx := context.Background()
	bus, _ := cachetest.NewBus(t)
	engine := NewEngine(websocket.NewRegistry(0), bus, time.Hour)

	sub, err := bus.Subscribe(ctx, cache.UserNotificationsChannel("u1"))
	require.NoError(t, err)
	defer sub.Close()

	engine.PublishUnreadCount(ctx, "u1", 4)

	var update CountUpdate
	require.NoError(t, json.Unmarshal([]byte(receive(t, sub).Payload), &update))
	assert.Equal(t, CountUpdate{Type: "notification_count", Count: 4}, update)
}
