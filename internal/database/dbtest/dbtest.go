// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"testing"

	"github.com/agorahq/agora/backend/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Open returns a migrated, private in-memory database closed with t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", "file::memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
