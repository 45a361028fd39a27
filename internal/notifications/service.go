package notifications

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/agorahq/agora/backend/internal/repository"
	"go.uber.org/zap"
)

// Envelope is the realtime frame for one notification.
type Envelope struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data View   `json:"data"`
}

// View is a notification as shown to its recipient.
type View struct {
	models.Notification
	Actor *repository.DisplayInfo `json:"actor,omitempty"`
}

// CreateParams describes a notification-worthy event.
type CreateParams struct {
	RecipientID string
	ActorID     string
	Type        models.NotificationType
	Title       string
	Message     string
	PostID      string
	CommentID   string
	CommunityID string
}

// Service persists notifications and pushes them through the engine.
type Service struct {
	store  *Store
	engine *Engine
	dir    repository.UserDirectory
}

func NewService(store *Store, engine *Engine, dir repository.UserDirectory) *Service {
	return &Service{store: store, engine: engine, dir: dir}
}

// Create stores and delivers a notification. Notifying yourself is a no-op
// and returns nil. Delivery problems never fail the call.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Notification, error) {
	if p.ActorID != "" && p.ActorID == p.RecipientID {
		return nil, nil
	}
	return s.create(ctx, p, s.actor(ctx, p.ActorID))
}

func (s *Service) create(ctx context.Context, p CreateParams, actor *repository.DisplayInfo) (*models.Notification, error) {
	if p.RecipientID == "" {
		return nil, apperrors.ErrMissingUserID
	}
	if !p.Type.Valid() {
		return nil, apperrors.InvalidField("type", fmt.Sprintf("unknown notification type %q", p.Type))
	}

	n := &models.Notification{
		RecipientID: p.RecipientID,
		ActorID:     optional(p.ActorID),
		Type:        p.Type,
		Title:       p.Title,
		Message:     p.Message,
		PostID:      optional(p.PostID),
		CommentID:   optional(p.CommentID),
		CommunityID: optional(p.CommunityID),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	s.engine.DeliverJSON(ctx, n.RecipientID, Envelope{
		Type: "notification",
		ID:   n.ID,
		Data: View{Notification: *n, Actor: actor},
	})
	s.publishCount(ctx, n.RecipientID)
	return n, nil
}

// MarkRead marks the given notifications read and republishes the count.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	n, err := s.store.MarkRead(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if n > 0 {
		s.publishCount(ctx, userID)
	}
	return n, nil
}

// MarkAllRead marks everything read and republishes the count.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	s.publishCount(ctx, userID)
	return n, nil
}

// CleanupOld deletes read notifications older than maxAge.
func (s *Service) CleanupOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.store.DeleteReadBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("cleanup old notifications: %w", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.List(ctx, userID, limit, offset)
}

func (s *Service) publishCount(ctx context.Context, userID string) {
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		logger.ErrorWithFields("failed to count unread notifications", err, logger.WithUserID(userID))
		return
	}
	s.engine.PublishUnreadCount(ctx, userID, count)
}

func (s *Service) actor(ctx context.Context, actorID string) *repository.DisplayInfo {
	if actorID == "" || s.dir == nil {
		return nil
	}
	info, err := s.dir.GetDisplayInfo(ctx, actorID)
	if err != nil {
		logger.L().Debug("actor lookup failed", logger.WithUserID(actorID), zap.Error(err))
		return nil
	}
	return info
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
