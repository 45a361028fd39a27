package middleware

import (
	"github.com/agorahq/agora/backend/internal/auth"
	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "identity"

// AuthMiddleware requires a valid access token and stores the caller's
// identity on the context.
func AuthMiddleware(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			abortWith(c, apperrors.Unauthorized(err.Error()))
			return
		}
		identity, err := tokens.ValidateToken(raw)
		if err != nil {
			logger.L().Debug("token rejected", logger.WithIP(c.ClientIP()), zap.Error(err))
			abortWith(c, apperrors.Unauthorized("invalid or expired token"))
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware.
func CurrentIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*auth.Identity)
	return id, ok && id != nil
}

// AdminMiddleware requires AuthMiddleware to have stored an admin identity.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok || !id.IsAdmin {
			abortWith(c, apperrors.Unauthorized("admin access required"))
			return
		}
		c.Next()
	}
}

func abortWith(c *gin.Context, err *apperrors.APIError) {
	c.AbortWithStatusJSON(err.Status, gin.H{"error": err})
}
