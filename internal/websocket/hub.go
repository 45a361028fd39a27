package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Budget for teardown bus and database calls
	teardownTimeout = 5 * time.Second

	// Notification ids remembered per connection for de-duplication
	recentIDWindow = 256
)

// Presence is the slice of the presence register sessions use.
type Presence interface {
	MarkOnline(ctx context.Context, userID string) error
	JoinCommunity(ctx context.Context, communityID, userID string) error
	LeaveCommunity(ctx context.Context, communityID, userID string) error
	TrackConnection(ctx context.Context, userID, connectionID string) error
	UntrackConnection(ctx context.Context, userID, connectionID string) (int64, error)
}

// TypingRegister is the slice of the typing register sessions use.
type TypingRegister interface {
	StartTyping(ctx context.Context, userID string, t typing.Thread) error
	StopTyping(ctx context.Context, userID string, t typing.Thread) error
	Heartbeat(ctx context.Context, userID string, t typing.Thread) (bool, error)
	CleanupForUser(ctx context.Context, userID string) (int64, error)
}

// OfflineQueue hands over notifications queued while the user was offline.
type OfflineQueue interface {
	DrainQueue(ctx context.Context, userID string) ([]json.RawMessage, error)
}

// RateLimitConfig bounds inbound client messages per connection.
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxMessagesPerSecond: 10, BurstSize: 20}
}

// HubConfig tunes session behavior.
type HubConfig struct {
	RateLimit  RateLimitConfig
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// Hub runs sessions against the shared registry and registers.
type Hub struct {
	registry *Registry
	bus      cache.Bus
	presence Presence
	typing   TypingRegister
	queue    OfflineQueue
	cfg      HubConfig

	active   atomic.Int64
	total    atomic.Int64
	sessions sync.WaitGroup

	closing context.Context
	close   context.CancelFunc
}

func NewHub(registry *Registry, bus cache.Bus, presence Presence, typingReg TypingRegister, queue OfflineQueue, cfg HubConfig) *Hub {
	if cfg.RateLimit.MaxMessagesPerSecond <= 0 {
		cfg.RateLimit = DefaultRateLimitConfig()
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = pingPeriod
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = writeWait
	}
	closing, cancel := context.WithCancel(context.Background())
	return &Hub{
		closing:  closing,
		close:    cancel,
		registry: registry,
		bus:      bus,
		presence: presence,
		typing:   typingReg,
		queue:    queue,
		cfg:      cfg,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// Serve runs a session on an accepted connection until it ends or the hub
// shuts down.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID string) error {
	h.sessions.Add(1)
	defer h.sessions.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.closing, cancel)
	defer stop()

	return newSession(h, conn, userID).run(ctx)
}

// Shutdown ends every session and waits for their teardown, or for ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.close()
	return h.Wait(ctx)
}

// Wait blocks until every running session has finished teardown or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time view of this process's sessions.
type Stats struct {
	RegisteredUsers  int   `json:"registered_users"`
	ActiveSessions   int64 `json:"active_sessions"`
	TotalSessions    int64 `json:"total_sessions"`
	ReplacedSessions int64 `json:"replaced_sessions"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		RegisteredUsers:  h.registry.Count(),
		ActiveSessions:   h.active.Load(),
		TotalSessions:    h.total.Load(),
		ReplacedSessions: h.registry.Replaced(),
	}
}
