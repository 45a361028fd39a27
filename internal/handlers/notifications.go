package handlers

import (
	"net/http"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/agorahq/agora/backend/internal/notifications"
	"github.com/gin-gonic/gin"
)

// GetNotifications lists the caller's notifications, newest first
// GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit := parseInt(c.DefaultQuery("limit", "20"), 20)
	offset := parseInt(c.DefaultQuery("offset", "0"), 0)
	if offset < 0 {
		offset = 0
	}

	list, err := h.notifications.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unread":        unread,
		"meta": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(list),
		},
	})
}

// GetUnreadCount returns the badge count
// GET /api/v1/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}

type markReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// MarkNotificationsRead marks the listed notifications as read
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidField("ids", "at least one notification id is required"))
		return
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "updated": updated})
}

// MarkAllNotificationsRead clears the caller's unread count
// POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "updated": updated})
}

type createNotificationRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	ActorID     string `json:"actor_id"`
	Type        string `json:"type" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Message     string `json:"message"`
	PostID      string `json:"post_id"`
	CommentID   string `json:"comment_id"`
	CommunityID string `json:"community_id"`
}

// CreateNotification records and delivers a notification on behalf of
// another service (admin only)
// POST /api/v1/admin/notifications
func (h *Handlers) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.BadRequest("invalid notification").WithDetails(err.Error()))
		return
	}

	n, err := h.notifications.Create(c.Request.Context(), notifications.CreateParams{
		RecipientID: req.RecipientID,
		ActorID:     req.ActorID,
		Type:        models.NotificationType(req.Type),
		Title:       req.Title,
		Message:     req.Message,
		PostID:      req.PostID,
		CommentID:   req.CommentID,
		CommunityID: req.CommunityID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if n == nil {
		c.JSON(http.StatusOK, gin.H{"status": "skipped"})
		return
	}
	c.JSON(http.StatusCreated, n)
}

type announcementRequest struct {
	CommunityID string `json:"community_id"`
	Title       string `json:"title" binding:"required"`
	Message     string `json:"message"`
}

// Announcement is the broadcast frame sent to every connection in scope.
type Announcement struct {
	Type        string `json:"type"`
	CommunityID string `json:"community_id,omitempty"`
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
}

// BroadcastAnnouncement pushes an announcement to everyone, or to one
// community's update channel (admin only)
// POST /api/v1/admin/broadcast
func (h *Handlers) BroadcastAnnouncement(c *gin.Context) {
	if h.engine == nil {
		respondError(c, apperrors.ServiceUnavailable("broadcast"))
		return
	}

	var req announcementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidField("title", "title is required"))
		return
	}

	msg := Announcement{Type: "announcement", CommunityID: req.CommunityID, Title: req.Title, Message: req.Message}
	if req.CommunityID == "" {
		h.engine.BroadcastGlobal(c.Request.Context(), msg)
	} else {
		msg.Type = "community_announcement"
		h.engine.BroadcastCommunity(c.Request.Context(), req.CommunityID, msg)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
