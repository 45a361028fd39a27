// Package container owns the realtime core's object graph: the database and
// bus handles, the registers built on them and their shutdown order.
package container

import (
	"context"
	"sync"
	"time"

	"github.com/agorahq/agora/backend/internal/auth"
	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/config"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/notifications"
	"github.com/agorahq/agora/backend/internal/presence"
	"github.com/agorahq/agora/backend/internal/repository"
	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/agorahq/agora/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// displayInfoTTL bounds how stale a cached username or avatar can be.
const displayInfoTTL = 5 * time.Minute

// Container holds all application dependencies and provides type-safe access.
type Container struct {
	cfg *config.Config

	// Core infrastructure
	db  *gorm.DB
	bus cache.Bus

	// Registers
	tokens        *auth.TokenService
	directory     repository.UserDirectory
	presence      *presence.Service
	typing        *typing.Service
	sweeper       *typing.CleanupService
	registry      *websocket.Registry
	engine        *notifications.Engine
	notifications *notifications.Service
	pruner        *notifications.PruneService
	hub           *websocket.Hub

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a container for cfg. Register the database and bus, then call
// Wire.
func New(cfg *config.Config) *Container {
	return &Container{cfg: cfg}
}

// SetDB registers the database connection
func (c *Container) SetDB(db *gorm.DB) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// SetBus registers the shared bus
func (c *Container) SetBus(bus cache.Bus) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus = bus
	return c
}

// Wire builds every register from the configured database and bus. It
// fails if either is missing.
func (c *Container) Wire() error {
	if err := c.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rt := c.cfg.Realtime
	c.tokens = auth.NewTokenService([]byte(c.cfg.JWTSecret))
	c.directory = repository.NewCachedDirectory(repository.NewUserRepository(c.db), c.bus, displayInfoTTL)
	c.presence = presence.NewService(c.bus, presence.Config{
		UserTTL:          rt.UserPresenceTTL,
		CommunityTTL:     rt.CommunityPresenceTTL,
		ConnectionSetTTL: rt.ConnectionSetTTL,
	})
	c.typing = typing.NewService(c.db, c.bus, c.directory, rt.TypingTTL)
	c.sweeper = typing.NewCleanupService(c.typing, rt.TypingSweepInterval)
	c.registry = websocket.NewRegistry(rt.OutboxSize)
	c.engine = notifications.NewEngine(c.registry, c.bus, rt.OfflineQueueTTL)
	c.notifications = notifications.NewService(notifications.NewStore(c.db), c.engine, c.directory)
	c.pruner = notifications.NewPruneService(c.notifications, rt.NotificationRetention, rt.NotificationPruneInterval)
	c.hub = websocket.NewHub(c.registry, c.bus, c.presence, c.typing, c.engine, websocket.HubConfig{})
	return nil
}

func (c *Container) Config() *config.Config { return c.cfg }

// DB returns the database connection
func (c *Container) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Bus returns the shared bus
func (c *Container) Bus() cache.Bus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bus
}

func (c *Container) Tokens() *auth.TokenService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

func (c *Container) Directory() repository.UserDirectory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.directory
}

func (c *Container) Presence() *presence.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presence
}

func (c *Container) Typing() *typing.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.typing
}

// Sweeper returns the periodic typing cleanup. It is not started by Wire.
func (c *Container) Sweeper() *typing.CleanupService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sweeper
}

// Pruner returns the periodic removal of old read notifications. It is not
// started by Wire.
func (c *Container) Pruner() *notifications.PruneService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pruner
}

func (c *Container) Registry() *websocket.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

func (c *Container) Engine() *notifications.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

func (c *Container) Notifications() *notifications.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications
}

func (c *Container) Hub() *websocket.Hub {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first cleaned up).
func (c *Container) OnCleanup(fn func(context.Context) error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup runs the registered cleanup functions in reverse order. Every
// function runs; the first error is returned.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			logger.L().Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Validate checks that all required dependencies are registered.
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	if c.cfg == nil {
		missing = append(missing, "config")
	}
	if c.db == nil {
		missing = append(missing, "database (DB)")
	}
	if c.bus == nil {
		missing = append(missing, "shared bus (Redis)")
	}
	if len(missing) > 0 {
		return NewInitializationError("Missing required dependencies", missing)
	}
	return nil
}
