package handlers

import (
	"strconv"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func parseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// respondError writes err in the standard error envelope. Internal errors
// are logged and their details withheld from the client.
func respondError(c *gin.Context, err error) {
	apiErr := apperrors.FromError(err)
	if apiErr.Code == apperrors.ErrInternalError {
		logger.ErrorWithFields("request failed", err,
			logger.WithRequestID(middleware.RequestID(c)))
		apiErr = apperrors.InternalError("internal error")
	}
	c.JSON(apiErr.Status, gin.H{"error": apiErr})
}

// currentUserID returns the authenticated caller, writing a 401 if there is
// none.
func currentUserID(c *gin.Context) (string, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, apperrors.Unauthorized("authentication required"))
		return "", false
	}
	return id.UserID, true
}

// uuidParam returns the canonical form of a uuid path parameter, writing a
// 400 if it is malformed.
func uuidParam(c *gin.Context, name, field string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperrors.InvalidField(field, "must be a uuid"))
		return "", false
	}
	return id.String(), true
}
