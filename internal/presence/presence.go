// Package presence keeps TTL-bound online markers on the shared bus: one key
// per online user, one sorted set per community and one connection-id set
// per user. A missing record means offline.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
)

// Config holds presence TTLs.
type Config struct {
	UserTTL          time.Duration
	CommunityTTL     time.Duration
	ConnectionSetTTL time.Duration
}

// DefaultConfig returns the production TTLs.
func DefaultConfig() Config {
	return Config{
		UserTTL:          300 * time.Second,
		CommunityTTL:     300 * time.Second,
		ConnectionSetTTL: time.Hour,
	}
}

// CommunityUpdate is published to community_presence:<id> on join and leave.
type CommunityUpdate struct {
	Type        string `json:"type"`
	CommunityID string `json:"community_id"`
	OnlineCount int64  `json:"online_count"`
}

// Service is the presence register.
type Service struct {
	bus cache.Bus
	cfg Config
	now func() time.Time
}

func NewService(bus cache.Bus, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = def.UserTTL
	}
	if cfg.CommunityTTL <= 0 {
		cfg.CommunityTTL = def.CommunityTTL
	}
	if cfg.ConnectionSetTTL <= 0 {
		cfg.ConnectionSetTTL = def.ConnectionSetTTL
	}
	return &Service{bus: bus, cfg: cfg, now: time.Now}
}

// SetClock replaces the clock used to score community memberships.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// MarkOnline sets or refreshes the user's online marker.
func (s *Service) MarkOnline(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.ErrMissingUserID
	}
	if err := s.bus.SetEx(ctx, cache.UserOnlineKey(userID), "1", s.cfg.UserTTL); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

// MarkOffline removes the online marker.
func (s *Service) MarkOffline(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.ErrMissingUserID
	}
	if err := s.bus.Del(ctx, cache.UserOnlineKey(userID)); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

func (s *Service) IsOnline(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperrors.ErrMissingUserID
	}
	return s.bus.Exists(ctx, cache.UserOnlineKey(userID))
}

// JoinCommunity records the user as present in the community. Each member is
// scored with its join time so it ages out on its own; the key TTL is
// refreshed on every join.
func (s *Service) JoinCommunity(ctx context.Context, communityID, userID string) error {
	if communityID == "" {
		return apperrors.ErrMissingCommunityID
	}
	if userID == "" {
		return apperrors.ErrMissingUserID
	}
	key := cache.CommunityOnlineKey(communityID)
	if err := s.bus.ZAdd(ctx, key, float64(s.now().UnixMilli()), userID); err != nil {
		return fmt.Errorf("join community: %w", err)
	}
	if err := s.bus.Expire(ctx, key, s.cfg.CommunityTTL); err != nil {
		return fmt.Errorf("join community: %w", err)
	}
	s.broadcast(ctx, communityID)
	return nil
}

func (s *Service) LeaveCommunity(ctx context.Context, communityID, userID string) error {
	if communityID == "" {
		return apperrors.ErrMissingCommunityID
	}
	if userID == "" {
		return apperrors.ErrMissingUserID
	}
	if err := s.bus.ZRem(ctx, cache.CommunityOnlineKey(communityID), userID); err != nil {
		return fmt.Errorf("leave community: %w", err)
	}
	s.broadcast(ctx, communityID)
	return nil
}

func (s *Service) CommunityOnlineCount(ctx context.Context, communityID string) (int64, error) {
	if communityID == "" {
		return 0, apperrors.ErrMissingCommunityID
	}
	key := cache.CommunityOnlineKey(communityID)
	if err := s.prune(ctx, key); err != nil {
		return 0, err
	}
	return s.bus.ZCard(ctx, key)
}

func (s *Service) CommunityOnlineUsers(ctx context.Context, communityID string) ([]string, error) {
	if communityID == "" {
		return nil, apperrors.ErrMissingCommunityID
	}
	key := cache.CommunityOnlineKey(communityID)
	if err := s.prune(ctx, key); err != nil {
		return nil, err
	}
	return s.bus.ZRange(ctx, key)
}

// prune drops memberships not refreshed within the community TTL.
func (s *Service) prune(ctx context.Context, key string) error {
	cutoff := s.now().Add(-s.cfg.CommunityTTL).UnixMilli()
	return s.bus.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
}

func (s *Service) broadcast(ctx context.Context, communityID string) {
	count, err := s.CommunityOnlineCount(ctx, communityID)
	if err != nil {
		cache.ReportError("community_count", err, logger.WithCommunityID(communityID))
		return
	}
	data, err := json.Marshal(CommunityUpdate{
		Type:        "community_presence",
		CommunityID: communityID,
		OnlineCount: count,
	})
	if err != nil {
		return
	}
	channel := cache.CommunityPresenceChannel(communityID)
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		cache.ReportError("publish", err, logger.WithChannel(channel))
	}
}

// TrackConnection adds a connection id to the user's cross-process set.
func (s *Service) TrackConnection(ctx context.Context, userID, connectionID string) error {
	key := cache.ConnectionsKey(userID)
	if err := s.bus.SAdd(ctx, key, connectionID); err != nil {
		return fmt.Errorf("track connection: %w", err)
	}
	if err := s.bus.Expire(ctx, key, s.cfg.ConnectionSetTTL); err != nil {
		return fmt.Errorf("track connection: %w", err)
	}
	return nil
}

// UntrackConnection removes a connection id and returns how many remain
// across all processes. When none remain the user is marked offline.
func (s *Service) UntrackConnection(ctx context.Context, userID, connectionID string) (int64, error) {
	key := cache.ConnectionsKey(userID)
	if err := s.bus.SRem(ctx, key, connectionID); err != nil {
		return 0, fmt.Errorf("untrack connection: %w", err)
	}
	remaining, err := s.bus.SCard(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("untrack connection: %w", err)
	}
	if remaining == 0 {
		if err := s.MarkOffline(ctx, userID); err != nil {
			return 0, err
		}
		logger.L().Debug("user went offline", logger.WithUserID(userID), logger.WithConnectionID(connectionID))
	}
	return remaining, nil
}

// Connections lists the user's live connection ids across processes.
func (s *Service) Connections(ctx context.Context, userID string) ([]string, error) {
	return s.bus.SMembers(ctx, cache.ConnectionsKey(userID))
}
