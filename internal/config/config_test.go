package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Contains(t, cfg.DatabaseURL, "dbname=agora")
	assert.Equal(t, 30*time.Second, cfg.Realtime.TypingTTL)
	assert.Equal(t, 24*time.Hour, cfg.Realtime.OfflineQueueTTL)
	assert.Equal(t, 100, cfg.Realtime.OutboxSize)
	assert.Equal(t, 30*24*time.Hour, cfg.Realtime.NotificationRetention)
	assert.Equal(t, time.Hour, cfg.Realtime.NotificationPruneInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("WS_UPGRADE_RATE_LIMIT", "5")
	t.Setenv("NOTIFICATION_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.OTELEnabled)
	assert.Equal(t, 5, cfg.WSUpgradeRateLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Realtime.NotificationRetention)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PATH", "dev.db")

	driver, dsn, err := Database()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "dev.db", dsn)

	t.Setenv("DB_DRIVER", "mysql")
	_, _, err = Database()
	assert.Error(t, err)
}
