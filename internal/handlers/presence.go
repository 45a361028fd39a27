package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUserOnline reports whether a user has a live presence key
// GET /api/v1/users/:id/online
func (h *Handlers) GetUserOnline(c *gin.Context) {
	userID := c.Param("id")

	online, err := h.presence.IsOnline(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "is_online": online})
}

// GetCommunityOnline returns how many members are present in a community
// GET /api/v1/communities/:id/online
func (h *Handlers) GetCommunityOnline(c *gin.Context) {
	communityID, ok := uuidParam(c, "id", "community_id")
	if !ok {
		return
	}

	users, err := h.presence.CommunityOnlineUsers(c.Request.Context(), communityID)
	if err != nil {
		respondError(c, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"community_id": communityID,
		"online_count": len(users),
		"user_ids":     users,
	})
}
