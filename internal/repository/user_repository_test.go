package repository

import (
	"context"
	"testing"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/cache/cachetest"
	"github.com/agorahq/agora/backend/internal/database/dbtest"
	"github.com/agorahq/agora/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	ada := models.User{Username: "ada", DisplayName: "Ada L", AvatarURL: "https://cdn/ada.png"}
	bob := models.User{Username: "bob", DisplayName: "Bob"}
	require.NoError(t, db.Create(&ada).Error)
	require.NoError(t, db.Create(&bob).Error)

	repo := NewUserRepository(db)

	info, err := repo.GetDisplayInfo(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", info.Username)
	assert.Equal(t, "https://cdn/ada.png", info.AvatarURL)

	_, err = repo.GetDisplayInfo(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)

	infos, err := repo.GetDisplayInfos(ctx, []string{ada.ID, bob.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, "bob", infos[bob.ID].Username)

	infos, err = repo.GetDisplayInfos(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, infos)

	byName, err := repo.FindByUsernames(ctx, []string{"ada", "nobody"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, ada.ID, byName["ada"].UserID)

	byName, err = repo.FindByUsernames(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, byName)
}

type countingDirectory struct {
	users map[string]DisplayInfo
	calls int
}

func (d *countingDirectory) GetDisplayInfo(_ context.Context, id string) (*DisplayInfo, error) {
	d.calls++
	info, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &info, nil
}

func (d *countingDirectory) GetDisplayInfos(_ context.Context, ids []string) (map[string]DisplayInfo, error) {
	d.calls++
	out := map[string]DisplayInfo{}
	for _, id := range ids {
		if info, ok := d.users[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (d *countingDirectory) FindByUsernames(_ context.Context, names []string) (map[string]DisplayInfo, error) {
	d.calls++
	out := map[string]DisplayInfo{}
	for _, info := range d.users {
		for _, name := range names {
			if info.Username == name {
				out[name] = info
			}
		}
	}
	return out, nil
}

func TestCachedDirectory(t *testing.T) {
	bus, mr := cachetest.NewBus(t)
	ctx := context.Background()

	next := &countingDirectory{users: map[string]DisplayInfo{
		"u1": {UserID: "u1", Username: "one"},
		"u2": {UserID: "u2", Username: "two"},
	}}
	dir := NewCachedDirectory(next, bus, time.Minute)

	info, err := dir.GetDisplayInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "one", info.Username)
	assert.True(t, mr.Exists(cache.DisplayInfoKey("u1")))

	_, err = dir.GetDisplayInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)

	infos, err := dir.GetDisplayInfos(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	assert.Equal(t, 2, next.calls, "only u2 should miss the cache")

	mr.FastForward(2 * time.Minute)
	_, err = dir.GetDisplayInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)

	_, err = dir.GetDisplayInfo(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	byName, err := dir.FindByUsernames(ctx, []string{"two"})
	require.NoError(t, err)
	assert.Equal(t, "u2", byName["two"].UserID)
}

func TestCachedDirectoryFallsThroughWhenBusDown(t *testing.T) {
	bus, mr := cachetest.NewBus(t)
	next := &countingDirectory{users: map[string]DisplayInfo{"u1": {UserID: "u1", Username: "one"}}}
	dir := NewCachedDirectory(next, bus, time.Minute)

	mr.Close()
	info, err := dir.GetDisplayInfo(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "one", info.Username)
}
