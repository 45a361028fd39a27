package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationCommentReply    NotificationType = "comment_reply"
	NotificationPostReply       NotificationType = "post_reply"
	NotificationMention         NotificationType = "mention"
	NotificationUpvote          NotificationType = "upvote"
	NotificationDownvote        NotificationType = "downvote"
	NotificationCommunityInvite NotificationType = "community_invite"
	NotificationCommunityBan    NotificationType = "community_ban"
	NotificationPostRemoved     NotificationType = "post_removed"
	NotificationCommentRemoved  NotificationType = "comment_removed"
	NotificationFollow          NotificationType = "follow"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationCommentReply, NotificationPostReply, NotificationMention,
		NotificationUpvote, NotificationDownvote, NotificationCommunityInvite,
		NotificationCommunityBan, NotificationPostRemoved, NotificationCommentRemoved,
		NotificationFollow:
		return true
	}
	return false
}

// Notification is the durable notification row. The realtime core only
// delivers these; the row is the system of record.
type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string           `gorm:"not null;index:idx_notifications_recipient,priority:1" json:"recipient_id"`
	ActorID     *string          `json:"actor_id,omitempty"`
	Type        NotificationType `gorm:"not null" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message"`
	PostID      *string          `json:"post_id,omitempty"`
	CommentID   *string          `json:"comment_id,omitempty"`
	CommunityID *string          `json:"community_id,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_recipient,priority:2" json:"is_read"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
