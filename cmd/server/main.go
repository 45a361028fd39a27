package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/config"
	"github.com/agorahq/agora/backend/internal/container"
	"github.com/agorahq/agora/backend/internal/database"
	"github.com/agorahq/agora/backend/internal/handlers"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"github.com/agorahq/agora/backend/internal/middleware"
	"github.com/agorahq/agora/backend/internal/telemetry"
	"github.com/agorahq/agora/backend/internal/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "agora-realtime"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		_ = logger.Initialize("info", "")
		logger.FatalWithFields("Failed to load configuration", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.L().Info("=== Agora realtime server starting ===", zap.String("environment", cfg.Environment))
	metrics.Initialize()

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		Enabled:      cfg.OTELEnabled,
		SamplingRate: cfg.OTELSamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled: failed to initialize tracer", err)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	bus, err := connectBus(cfg)
	if err != nil {
		logger.FatalWithFields("Failed to connect to Redis", err)
	}

	c := container.New(cfg).SetDB(db).SetBus(bus)
	if err := c.Wire(); err != nil {
		logger.FatalWithFields("Failed to wire services", err)
	}
	c.OnCleanup(func(context.Context) error { return database.Close(db) })
	c.OnCleanup(func(context.Context) error { return bus.Close() })
	if tp != nil {
		c.OnCleanup(tp.Shutdown)
	}

	// Expired typing indicators are swept regardless of client behavior.
	sweeper := c.Sweeper()
	sweeper.Start()
	pruner := c.Pruner()
	pruner.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(c, tp != nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.L().Info("Agora realtime server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info("Shutting down server...")

	// Give outstanding requests and sessions 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweeper.Stop()
	pruner.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WarnWithFields("HTTP server forced to shutdown", err)
	}
	// Hijacked websocket connections are not covered by srv.Shutdown.
	if err := c.Hub().Shutdown(ctx); err != nil {
		logger.WarnWithFields("WebSocket sessions did not finish teardown", err)
	}
	if err := c.Cleanup(ctx); err != nil {
		logger.WarnWithFields("Cleanup incomplete", err)
	}

	logger.L().Info("Server exited")
}

func connectBus(cfg *config.Config) (*cache.RedisClient, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedisClientFromURL(cfg.RedisURL)
	}
	return cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
}

func newRouter(c *container.Container, tracing bool) *gin.Engine {
	cfg := c.Config()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if tracing {
		r.Use(otelgin.Middleware(serviceName))
	}
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if slices.Contains(cfg.AllowedOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	dbPing := handlers.PingFunc(func(ctx context.Context) error {
		sqlDB, err := c.DB().DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	r.GET("/health", handlers.Health(serviceName, map[string]handlers.Pinger{
		"redis":    c.Bus(),
		"database": dbPing,
	}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(c.Tokens())
	wsHandler := websocket.NewHandler(c.Hub(), cfg.AllowedOrigins)
	h := handlers.NewHandlers(c.Notifications(), c.Presence(), c.Typing())
	h.SetEngine(c.Engine())

	api := r.Group("/api/v1")
	{
		// WebSocket routes. No gzip here: the upgrade hijacks the writer.
		ws := api.Group("/ws")
		{
			ws.GET("", auth, middleware.UpgradeRateLimitMiddleware(c.Bus(), cfg.WSUpgradeRateLimit, time.Minute), wsHandler.HandleWebSocket)
			ws.GET("/stats", auth, wsHandler.GetStats)
		}

		rest := api.Group("")
		rest.Use(gzip.Gzip(gzip.DefaultCompression), auth)
		{
			rest.GET("/posts/:id/typing", h.GetTypingUsers)
			rest.GET("/communities/:id/online", h.GetCommunityOnline)
			rest.GET("/users/:id/online", h.GetUserOnline)
		}

		notifications := rest.Group("/notifications")
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/unread-count", h.GetUnreadCount)
			notifications.POST("/read", h.MarkNotificationsRead)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
		}

		admin := rest.Group("/admin")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/notifications", h.CreateNotification)
			admin.POST("/broadcast", h.BroadcastAnnouncement)
		}
	}

	return r
}
