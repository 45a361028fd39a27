package models

import "time"

// TypingIndicator marks a user composing a reply in one thread. The thread is
// (post_id, parent_comment_id); an empty parent_comment_id is the post's
// top-level thread and is a distinct key, never a wildcard.
type TypingIndicator struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	UserID          string    `gorm:"not null;uniqueIndex:idx_typing_key,priority:1" json:"user_id"`
	PostID          string    `gorm:"not null;uniqueIndex:idx_typing_key,priority:2;index:idx_typing_thread,priority:1" json:"post_id"`
	ParentCommentID string    `gorm:"not null;default:'';uniqueIndex:idx_typing_key,priority:3;index:idx_typing_thread,priority:2" json:"parent_comment_id"`
	StartedTypingAt time.Time `gorm:"not null" json:"started_typing_at"`
	LastActivityAt  time.Time `gorm:"not null;index" json:"last_activity_at"`
}

func (TypingIndicator) TableName() string { return "comment_typing_indicators" }
