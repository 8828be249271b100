package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Citadel server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	AI       AIConfig
	Watcher  WatcherConfig
}

type ServerConfig struct {
	Port          int
	Env           string
	LogLevel      string
	MigrationsDir string
}

// DatabaseConfig configures the optional Postgres settings store. An empty
// URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the optional Redis cache. An empty URL selects the
// in-memory cache.
type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	TTL       time.Duration
	RateLimit int
}

type AIConfig struct {
	HealthTimeout      time.Duration
	ModelsTimeout      time.Duration
	VerifyTimeout      time.Duration
	InferenceTimeout   time.Duration
	AllowCloudAnalysis bool
	FinalizeDelay      time.Duration
	ProxyBase          string
}

// WatcherConfig enables the tactical watcher when Dir is set.
type WatcherConfig struct {
	Dir     string
	Session string
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:          envInt("CITADEL_PORT", 8080),
			Env:           envString("CITADEL_ENV", EnvDevelopment),
			LogLevel:      envString("CITADEL_LOG_LEVEL", "info"),
			MigrationsDir: envString("CITADEL_MIGRATIONS_DIR", "migrations"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Session: SessionConfig{
			TTL:       envDuration("CITADEL_SESSION_TTL", 24*time.Hour),
			RateLimit: envInt("CITADEL_RATE_LIMIT", 30),
		},
		AI: AIConfig{
			HealthTimeout:      envDuration("AI_HEALTH_TIMEOUT", 5*time.Second),
			ModelsTimeout:      envDuration("AI_MODELS_TIMEOUT", 10*time.Second),
			VerifyTimeout:      envDuration("AI_VERIFY_TIMEOUT", 60*time.Second),
			InferenceTimeout:   envDuration("AI_INFERENCE_TIMEOUT", 5*time.Minute),
			AllowCloudAnalysis: envBool("AI_ALLOW_CLOUD_ANALYSIS", false),
			FinalizeDelay:      envDuration("AI_FINALIZE_DELAY", 500*time.Millisecond),
			ProxyBase:          os.Getenv("CITADEL_PROXY_BASE"),
		},
		Watcher: WatcherConfig{
			Dir:     os.Getenv("CITADEL_WATCH_DIR"),
			Session: envString("CITADEL_WATCH_SESSION", "watcher"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Development reports whether the server runs in development mode.
func (c *Config) Development() bool {
	return c.Server.Env == EnvDevelopment
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("CITADEL_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Env != EnvDevelopment && c.Server.Env != EnvProduction {
		return fmt.Errorf("CITADEL_ENV must be development or production, got %q", c.Server.Env)
	}
	if _, ok := parseLevel(c.Server.LogLevel); !ok {
		return fmt.Errorf("CITADEL_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if c.Database.URL != "" && !hasAnyPrefix(c.Database.URL, "postgres://", "postgresql://") {
		return fmt.Errorf("DATABASE_URL must start with postgres:// or postgresql://, got %q", c.Database.URL)
	}
	if c.Redis.URL != "" && !hasAnyPrefix(c.Redis.URL, "redis://", "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}
	if c.AI.ProxyBase != "" && !hasAnyPrefix(c.AI.ProxyBase, "http://", "https://") {
		return fmt.Errorf("CITADEL_PROXY_BASE must start with http:// or https://, got %q", c.AI.ProxyBase)
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"CITADEL_SESSION_TTL", c.Session.TTL},
		{"AI_HEALTH_TIMEOUT", c.AI.HealthTimeout},
		{"AI_MODELS_TIMEOUT", c.AI.ModelsTimeout},
		{"AI_VERIFY_TIMEOUT", c.AI.VerifyTimeout},
		{"AI_INFERENCE_TIMEOUT", c.AI.InferenceTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.d)
		}
	}
	if c.AI.FinalizeDelay < 0 {
		return fmt.Errorf("AI_FINALIZE_DELAY must not be negative, got %s", c.AI.FinalizeDelay)
	}
	if c.Session.RateLimit <= 0 {
		return fmt.Errorf("CITADEL_RATE_LIMIT must be positive, got %d", c.Session.RateLimit)
	}

	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.Server.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
