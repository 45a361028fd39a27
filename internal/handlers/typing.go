package handlers

import (
	"net/http"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/typing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetTypingUsers returns who is typing in a post's thread. Without
// parent_comment_id the top-level thread is returned.
// GET /api/v1/posts/:id/typing
func (h *Handlers) GetTypingUsers(c *gin.Context) {
	postID, ok := uuidParam(c, "id", "post_id")
	if !ok {
		return
	}

	thread := typing.Thread{PostID: postID}
	if parent := c.Query("parent_comment_id"); parent != "" {
		id, err := uuid.Parse(parent)
		if err != nil {
			respondError(c, apperrors.InvalidField("parent_comment_id", "must be a uuid"))
			return
		}
		thread.ParentCommentID = id.String()
	}

	update, err := h.typing.Snapshot(c.Request.Context(), thread)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}
