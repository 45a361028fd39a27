package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient implements Bus on top of go-redis with a pooled client.
type RedisClient struct {
	client *redis.Client
}

var _ Bus = (*RedisClient)(nil)

// NewRedisClient connects to host:port and verifies the connection.
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	return connect(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})
}

// NewRedisClientFromURL connects using a redis:// URL.
func NewRedisClientFromURL(url string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.MaxRetries = 3
	opts.PoolSize = 10
	opts.MinIdleConns = 5
	return connect(opts)
}

func connect(opts *redis.Options) (*RedisClient, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.ErrorWithFields("Failed to connect to Redis", err, zap.String("address", opts.Addr))
		return nil, err
	}

	logger.L().Info("Redis client connected", zap.String("address", opts.Addr))
	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Publish(ctx context.Context, channel string, message any) error {
	return rc.client.Publish(ctx, channel, message).Err()
}

func (rc *RedisClient) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	ps := rc.client.Subscribe(ctx, channels...)
	// The first reply confirms the whole SUBSCRIBE command.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, 64),
		done: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// Get returns ErrMiss when the key does not exist.
func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (rc *RedisClient) SetEx(ctx context.Context, key string, value any, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (rc *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return rc.client.Expire(ctx, key, ttl).Err()
}

func (rc *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return rc.client.Incr(ctx, key).Result()
}

func (rc *RedisClient) SAdd(ctx context.Context, key string, members ...any) error {
	return rc.client.SAdd(ctx, key, members...).Err()
}

func (rc *RedisClient) SRem(ctx context.Context, key string, members ...any) error {
	return rc.client.SRem(ctx, key, members...).Err()
}

func (rc *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return rc.client.SMembers(ctx, key).Result()
}

func (rc *RedisClient) SCard(ctx context.Context, key string) (int64, error) {
	return rc.client.SCard(ctx, key).Result()
}

func (rc *RedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return rc.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (rc *RedisClient) ZRem(ctx context.Context, key string, members ...any) error {
	return rc.client.ZRem(ctx, key, members...).Err()
}

func (rc *RedisClient) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	return rc.client.ZRemRangeByScore(ctx, key, min, max).Err()
}

func (rc *RedisClient) ZCard(ctx context.Context, key string) (int64, error) {
	return rc.client.ZCard(ctx, key).Result()
}

func (rc *RedisClient) ZRange(ctx context.Context, key string) ([]string, error) {
	return rc.client.ZRange(ctx, key, 0, -1).Result()
}

func (rc *RedisClient) RPushEx(ctx context.Context, key string, ttl time.Duration, values ...any) error {
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (rc *RedisClient) LRange(ctx context.Context, key string) ([]string, error) {
	return rc.client.LRange(ctx, key, 0, -1).Result()
}

func (rc *RedisClient) DrainList(ctx context.Context, key string) ([]string, error) {
	var items *redis.StringSliceCmd
	_, err := rc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items.Val(), nil
}
