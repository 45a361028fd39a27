package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the slice of the user record the realtime core reads: enough to
// render a typing indicator or a notification actor.
type User struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate hooks for GORM
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
