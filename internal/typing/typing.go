// Package typing tracks who is composing a reply in which thread and pushes
// the full typing list to the thread's bus channel after every change.
package typing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/agorahq/agora/backend/internal/repository"
	"github.com/agorahq/agora/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTTL is how long an indicator stays visible without activity.
const DefaultTTL = 30 * time.Second

// Thread identifies a reply thread. An empty ParentCommentID is the post's
// top-level thread.
type Thread struct {
	PostID          string
	ParentCommentID string
}

// Channel is the bus channel typing updates for the thread go to.
func (t Thread) Channel() string {
	if t.ParentCommentID == "" {
		return cache.PostTypingChannel(t.PostID)
	}
	return cache.CommentTypingChannel(t.PostID, t.ParentCommentID)
}

func (t Thread) validate() error {
	if t.PostID == "" {
		return apperrors.ErrMissingPostID
	}
	return nil
}

// TypingUser is one entry of a typing list.
type TypingUser struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	AvatarURL       string    `json:"avatar_url"`
	StartedTypingAt time.Time `json:"started_typing_at"`
}

// Update is the message published to a thread channel.
type Update struct {
	Type            string       `json:"type"`
	PostID          string       `json:"post_id"`
	ParentCommentID *string      `json:"parent_comment_id"`
	TypingUsers     []TypingUser `json:"typing_users"`
	Count           int          `json:"count"`
}

// Service is the typing register.
type Service struct {
	db  *gorm.DB
	bus cache.Bus
	dir repository.UserDirectory
	ttl time.Duration
	now func() time.Time
}

// NewService creates the register. dir may be nil, in which case typing
// lists carry user ids only.
func NewService(db *gorm.DB, bus cache.Bus, dir repository.UserDirectory, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{db: db, bus: bus, dir: dir, ttl: ttl, now: time.Now}
}

// SetClock replaces the clock used for activity timestamps and expiry.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) timestamp() time.Time { return s.now().UTC() }

func (s *Service) cutoff() time.Time { return s.timestamp().Add(-s.ttl) }

func (s *Service) keyScope(userID string, t Thread) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ? AND post_id = ? AND parent_comment_id = ?", userID, t.PostID, t.ParentCommentID)
	}
}

// StartTyping upserts the indicator for (user, thread). An existing row only
// has its last activity refreshed. The thread's list is broadcast afterwards.
func (s *Service) StartTyping(ctx context.Context, userID string, t Thread) error {
	if err := t.validate(); err != nil {
		return err
	}
	if userID == "" {
		return apperrors.ErrMissingUserID
	}

	now := s.timestamp()
	row := models.TypingIndicator{
		UserID:          userID,
		PostID:          t.PostID,
		ParentCommentID: t.ParentCommentID,
		StartedTypingAt: now,
		LastActivityAt:  now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}, {Name: "parent_comment_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_activity_at": now}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("start typing: %w", err)
	}

	s.Broadcast(ctx, t)
	return nil
}

// StopTyping deletes the indicator for exactly (user, thread) and broadcasts
// whether or not a row existed.
func (s *Service) StopTyping(ctx context.Context, userID string, t Thread) error {
	if err := t.validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Scopes(s.keyScope(userID, t)).Delete(&models.TypingIndicator{}).Error
	if err != nil {
		return fmt.Errorf("stop typing: %w", err)
	}

	s.Broadcast(ctx, t)
	return nil
}

// Heartbeat refreshes last activity on an existing indicator. It reports
// whether a row was touched and never creates one.
func (s *Service) Heartbeat(ctx context.Context, userID string, t Thread) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&models.TypingIndicator{}).
		Scopes(s.keyScope(userID, t)).
		Update("last_activity_at", s.timestamp())
	if res.Error != nil {
		return false, fmt.Errorf("typing heartbeat: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Users returns the active typers of a thread, first to start first.
func (s *Service) Users(ctx context.Context, t Thread) ([]TypingUser, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	var rows []models.TypingIndicator
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND parent_comment_id = ? AND last_activity_at > ?", t.PostID, t.ParentCommentID, s.cutoff()).
		Order("started_typing_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("typing users: %w", err)
	}

	users := make([]TypingUser, len(rows))
	ids := make([]string, len(rows))
	for i, r := range rows {
		users[i] = TypingUser{UserID: r.UserID, StartedTypingAt: r.StartedTypingAt}
		ids[i] = r.UserID
	}
	s.enrich(ctx, users, ids)
	return users, nil
}

func (s *Service) enrich(ctx context.Context, users []TypingUser, ids []string) {
	if s.dir == nil || len(ids) == 0 {
		return
	}
	infos, err := s.dir.GetDisplayInfos(ctx, ids)
	if err != nil {
		logger.WarnWithFields("typing users: display info lookup failed", err)
		return
	}
	for i := range users {
		if info, ok := infos[users[i].UserID]; ok {
			users[i].Username = info.Username
			users[i].AvatarURL = info.AvatarURL
		}
	}
}

func (s *Service) IsTyping(ctx context.Context, userID string, t Thread) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.TypingIndicator{}).
		Scopes(s.keyScope(userID, t)).
		Where("last_activity_at > ?", s.cutoff()).
		Count(&n).Error
	return n > 0, err
}

// ThreadsForUser lists the threads the user holds an indicator in.
func (s *Service) ThreadsForUser(ctx context.Context, userID string) ([]Thread, error) {
	var rows []models.TypingIndicator
	err := s.db.WithContext(ctx).
		Select("post_id", "parent_comment_id").
		Where("user_id = ?", userID).
		Order("post_id, parent_comment_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return threadsOf(rows), nil
}

// CleanupExpired deletes indicators idle longer than the TTL and rebroadcasts
// the threads they belonged to.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := s.cutoff()

	var stale []models.TypingIndicator
	if err := s.db.WithContext(ctx).
		Select("post_id", "parent_comment_id").
		Where("last_activity_at <= ?", cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("cleanup expired typing: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("last_activity_at <= ?", cutoff).Delete(&models.TypingIndicator{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup expired typing: %w", res.Error)
	}
	for _, t := range threadsOf(stale) {
		s.Broadcast(ctx, t)
	}
	return res.RowsAffected, nil
}

// CleanupForUser deletes every indicator of the user and rebroadcasts each
// affected thread.
func (s *Service) CleanupForUser(ctx context.Context, userID string) (int64, error) {
	threads, err := s.ThreadsForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cleanup typing for user: %w", err)
	}
	if len(threads) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.TypingIndicator{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup typing for user: %w", res.Error)
	}
	for _, t := range threads {
		s.Broadcast(ctx, t)
	}
	return res.RowsAffected, nil
}

// Snapshot builds the current typing list of the thread as an Update.
func (s *Service) Snapshot(ctx context.Context, t Thread) (Update, error) {
	users, err := s.Users(ctx, t)
	if err != nil {
		return Update{}, err
	}
	if users == nil {
		users = []TypingUser{}
	}
	update := Update{
		Type:        "typing_update",
		PostID:      t.PostID,
		TypingUsers: users,
		Count:       len(users),
	}
	if t.ParentCommentID != "" {
		parent := t.ParentCommentID
		update.ParentCommentID = &parent
	}
	return update, nil
}

// Broadcast publishes the thread's current typing list. Failures are logged.
func (s *Service) Broadcast(ctx context.Context, t Thread) {
	ctx, span := telemetry.StartSpan(ctx, "typing.broadcast", attribute.String("post_id", t.PostID))
	defer span.End()

	update, err := s.Snapshot(ctx, t)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.ErrorWithFields("typing broadcast: snapshot failed", err, logger.WithPostID(t.PostID))
		return
	}
	data, err := json.Marshal(update)
	if err != nil {
		return
	}

	channel := t.Channel()
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		telemetry.RecordError(span, err)
		cache.ReportError("publish", err, logger.WithChannel(channel))
		return
	}
	logger.L().Debug("typing update published", logger.WithChannel(channel), zap.Int("count", update.Count))
}

func threadsOf(rows []models.TypingIndicator) []Thread {
	seen := make(map[Thread]struct{}, len(rows))
	var out []Thread
	for _, r := range rows {
		t := Thread{PostID: r.PostID, ParentCommentID: r.ParentCommentID}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
