package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string
	RedisURL    string
	ListenAddr  string

	// AdminToken guards the /admin management API. If empty, the
	// admin API is disabled entirely.
	AdminToken string

	// AgentMasterSecret selects the derived-secret scheme: each agent's
	// signing secret is HMAC-SHA256(master, agent_id) and nothing is
	// persisted. If empty, per-agent stored secrets are used instead and
	// are generated (and shown once) at agent registration.
	AgentMasterSecret string

	// MaxBodyBytes is the request body ceiling enforced before any
	// signature or parse work.
	MaxBodyBytes int

	// TimestampSkew is the allowed drift between an agent's claimed
	// timestamp and server time.
	TimestampSkew time.Duration

	// RateLimit is the default number of ingest requests allowed per key
	// per window. Per-key settings override it.
	RateLimit int

	// RateLimitWindow is the sliding window the rate limit applies over.
	RateLimitWindow time.Duration

	// InventoryRetentionDays is how long inventory snapshots are kept
	// before the retention sweeper deletes them.
	InventoryRetentionDays int

	// EventRetentionDays is the maximum retention (in days) for security
	// events. Per-organization settings are clamped to this value.
	EventRetentionDays int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:            os.Getenv("APP_DATABASE_URL"),
		RedisURL:               getenv("APP_REDIS_URL", "redis://localhost:6379/0"),
		ListenAddr:             getenv("APP_LISTEN_ADDR", ":8080"),
		AdminToken:             os.Getenv("APP_ADMIN_TOKEN"),
		AgentMasterSecret:      os.Getenv("APP_AGENT_MASTER_SECRET"),
		MaxBodyBytes:           1024 * 1024,
		TimestampSkew:          300 * time.Second,
		RateLimit:              1000,
		RateLimitWindow:        time.Hour,
		InventoryRetentionDays: 30,
		EventRetentionDays:     90,
	}

	if v := envInt("APP_MAX_BODY_BYTES"); v > 0 {
		cfg.MaxBodyBytes = v
	}
	if v := envInt("APP_TIMESTAMP_SKEW_SECONDS"); v > 0 {
		cfg.TimestampSkew = time.Duration(v) * time.Second
	}
	if v := envInt("APP_RATE_LIMIT"); v > 0 {
		cfg.RateLimit = v
	}
	if v := envInt("APP_RATE_LIMIT_WINDOW_SECONDS"); v > 0 {
		cfg.RateLimitWindow = time.Duration(v) * time.Second
	}
	if v := envInt("APP_INVENTORY_RETENTION_DAYS"); v > 0 {
		cfg.InventoryRetentionDays = v
	}
	if v := envInt("APP_EVENT_RETENTION_DAYS"); v > 0 {
		cfg.EventRetentionDays = v
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
