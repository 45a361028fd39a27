package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Realtime holds the tunables of the presence, typing and delivery core.
type Realtime struct {
	TypingTTL                 time.Duration
	TypingSweepInterval       time.Duration
	UserPresenceTTL           time.Duration
	CommunityPresenceTTL      time.Duration
	ConnectionSetTTL          time.Duration
	OfflineQueueTTL           time.Duration
	OutboxSize                int
	NotificationRetention     time.Duration
	NotificationPruneInterval time.Duration
}

// DefaultRealtime returns the production defaults.
func DefaultRealtime() Realtime {
	return Realtime{
		TypingTTL:                 30 * time.Second,
		TypingSweepInterval:       30 * time.Second,
		UserPresenceTTL:           300 * time.Second,
		CommunityPresenceTTL:      300 * time.Second,
		ConnectionSetTTL:          time.Hour,
		OfflineQueueTTL:           24 * time.Hour,
		OutboxSize:                100,
		NotificationRetention:     30 * 24 * time.Hour,
		NotificationPruneInterval: time.Hour,
	}
}

// Config is the process configuration, read from the environment.
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	JWTSecret string

	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string

	DBDriver    string
	DatabaseURL string

	AllowedOrigins []string

	OTELEnabled      bool
	OTELEndpoint     string
	OTELSamplingRate float64

	// WSUpgradeRateLimit is the number of upgrades allowed per user per minute.
	WSUpgradeRateLimit int

	Realtime Realtime
}

// Load reads an optional .env file and then the environment.
// REQUIRED environment variables:
// - JWT_SECRET: HMAC secret used to verify access tokens
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8787"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", "realtime.log"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:        databaseURL(),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		OTELEnabled:        getBool("OTEL_ENABLED", false),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELSamplingRate:   getFloat("OTEL_SAMPLING_RATE", 1.0),
		WSUpgradeRateLimit: getInt("WS_UPGRADE_RATE_LIMIT", 30),
		Realtime:           DefaultRealtime(),
	}

	if days := getInt("NOTIFICATION_RETENTION_DAYS", 0); days > 0 {
		cfg.Realtime.NotificationRetention = time.Duration(days) * 24 * time.Hour
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// Database reads only the database settings, for tools that do not need a
// token secret.
func Database() (driver, dsn string, err error) {
	_ = godotenv.Load()
	driver = getEnv("DB_DRIVER", "postgres")
	if driver != "postgres" && driver != "sqlite" {
		return "", "", fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	return driver, databaseURL(), nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles a DSN from DB_* parts.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if getEnv("DB_DRIVER", "postgres") == "sqlite" {
		return getEnv("DB_PATH", "agora.db")
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		getEnv("DB_NAME", "agora"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
