package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UpgradeRateLimitMiddleware caps websocket upgrades per user across all
// processes with a fixed-window counter on the bus. Must run after
// AuthMiddleware.
func UpgradeRateLimitMiddleware(bus cache.Bus, maxUpgrades int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			abortWith(c, apperrors.Unauthorized("authentication required"))
			return
		}

		key := cache.UpgradeRateLimitKey(id.UserID)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := bus.Incr(ctx, key)
		if err != nil {
			// Fail closed.
			cache.ReportError("rate_limit", err, logger.WithUserID(id.UserID))
			abortWith(c, apperrors.ServiceUnavailable("rate limiter"))
			return
		}
		if count == 1 {
			if err := bus.Expire(ctx, key, window); err != nil {
				cache.ReportError("rate_limit_expire", err, logger.WithUserID(id.UserID))
			}
		}

		if count > int64(maxUpgrades) {
			metrics.Get().RateLimitExceededTotal.WithLabelValues("ws_upgrade").Inc()
			logger.L().Warn("websocket upgrade rate limit exceeded",
				logger.WithUserID(id.UserID),
				zap.Int("max_upgrades", maxUpgrades),
				zap.Int64("current", count),
			)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			abortWith(c, apperrors.RateLimited(""))
			return
		}

		c.Next()
	}
}
