// Package cache wraps the Shared Bus: the Redis deployment every server
// process uses for TTL keys, presence sets, offline queues and pub/sub.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cache: key not found")

// Message is one payload received on a subscribed channel.
type Message struct {
	Channel string
	Payload string
}

// Subscription is a live pub/sub subscription. Messages is closed once the
// subscription is closed or the underlying connection is lost.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is the set of Shared Bus operations the realtime core depends on.
type Bus interface {
	Publish(ctx context.Context, channel string, message any) error
	// Subscribe returns after the server has confirmed the subscription, so
	// anything published afterwards is observed.
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)

	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...any) error
	ZRemRangeByScore(ctx context.Context, key, min, max string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRange(ctx context.Context, key string) ([]string, error)

	// RPushEx appends values and refreshes the key TTL in one transaction.
	RPushEx(ctx context.Context, key string, ttl time.Duration, values ...any) error
	LRange(ctx context.Context, key string) ([]string, error)
	// DrainList reads and deletes a list in one MULTI/EXEC.
	DrainList(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
