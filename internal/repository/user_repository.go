package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// DisplayInfo is what the realtime payloads show for a user.
type DisplayInfo struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// UserDirectory resolves display information for user ids.
type UserDirectory interface {
	GetDisplayInfo(ctx context.Context, userID string) (*DisplayInfo, error)
	// GetDisplayInfos returns entries for the ids that exist; unknown ids are omitted.
	GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]DisplayInfo, error)
	// FindByUsernames resolves usernames, keyed by username; unknown names are omitted.
	FindByUsernames(ctx context.Context, usernames []string) (map[string]DisplayInfo, error)
}

// userRepository implements UserDirectory over the users table
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserDirectory {
	return &userRepository{db: db}
}

func toDisplayInfo(u *models.User) DisplayInfo {
	name := u.Username
	if name == "" {
		name = u.DisplayName
	}
	return DisplayInfo{UserID: u.ID, Username: name, AvatarURL: u.AvatarURL}
}

func (r *userRepository) GetDisplayInfo(ctx context.Context, userID string) (*DisplayInfo, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	info := toDisplayInfo(&user)
	return &info, nil
}

func (r *userRepository) GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]DisplayInfo, error) {
	out := make(map[string]DisplayInfo, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = toDisplayInfo(&users[i])
	}
	return out, nil
}

func (r *userRepository) FindByUsernames(ctx context.Context, usernames []string) (map[string]DisplayInfo, error) {
	out := make(map[string]DisplayInfo, len(usernames))
	if len(usernames) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].Username] = toDisplayInfo(&users[i])
	}
	return out, nil
}

// CachedDirectory fronts a UserDirectory with short-lived bus entries.
// Cache failures fall through to the underlying directory.
type CachedDirectory struct {
	next UserDirectory
	bus  cache.Bus
	ttl  time.Duration
}

func NewCachedDirectory(next UserDirectory, bus cache.Bus, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{next: next, bus: bus, ttl: ttl}
}

func (c *CachedDirectory) GetDisplayInfo(ctx context.Context, userID string) (*DisplayInfo, error) {
	if info, ok := c.lookup(ctx, userID); ok {
		return &info, nil
	}
	info, err := c.next.GetDisplayInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, *info)
	return info, nil
}

func (c *CachedDirectory) GetDisplayInfos(ctx context.Context, userIDs []string) (map[string]DisplayInfo, error) {
	out := make(map[string]DisplayInfo, len(userIDs))
	var missing []string
	for _, id := range userIDs {
		if info, ok := c.lookup(ctx, id); ok {
			out[id] = info
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := c.next.GetDisplayInfos(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, info := range found {
		out[id] = info
		c.store(ctx, info)
	}
	return out, nil
}

// FindByUsernames is not cached; entries are keyed by id.
func (c *CachedDirectory) FindByUsernames(ctx context.Context, usernames []string) (map[string]DisplayInfo, error) {
	return c.next.FindByUsernames(ctx, usernames)
}

func (c *CachedDirectory) lookup(ctx context.Context, userID string) (DisplayInfo, bool) {
	var info DisplayInfo
	raw, err := c.bus.Get(ctx, cache.DisplayInfoKey(userID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logger.L().Debug("display info cache read failed", logger.WithUserID(userID), zap.Error(err))
		}
		return info, false
	}
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return info, false
	}
	return info, true
}

func (c *CachedDirectory) store(ctx context.Context, info DisplayInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.bus.SetEx(ctx, cache.DisplayInfoKey(info.UserID), data, c.ttl); err != nil {
		logger.L().Debug("display info cache write failed", logger.WithUserID(info.UserID), zap.Error(err))
	}
}
