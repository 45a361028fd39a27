// Package handlers serves the REST side of the realtime core: typing and
// presence snapshots and the notification inbox.
package handlers

import (
	"github.com/agorahq/agora/backend/internal/notifications"
	"github.com/agorahq/agora/backend/internal/presence"
	"github.com/agorahq/agora/backend/internal/typing"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	notifications *notifications.Service
	engine        *notifications.Engine
	presence      *presence.Service
	typing        *typing.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(notifs *notifications.Service, presenceSvc *presence.Service, typingSvc *typing.Service) *Handlers {
	return &Handlers{
		notifications: notifs,
		presence:      presenceSvc,
		typing:        typingSvc,
	}
}

// SetEngine enables the admin broadcast endpoints
func (h *Handlers) SetEngine(engine *notifications.Engine) {
	h.engine = engine
}
