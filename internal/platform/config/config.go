// Package config loads application configuration from environment variables.
// All variables use the REVISE_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	NATS     NATSConfig
	Catalog  CatalogConfig
	Chat     ChatConfig
	Study    StudyConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int
	Host            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds progress store settings. An empty URL keeps progress in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// Database drivers selected by URL scheme.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Driver returns the store implied by the URL scheme, or "" when unrecognized.
func (d DatabaseConfig) Driver() string {
	switch {
	case d.URL == "":
		return DriverMemory
	case strings.HasPrefix(d.URL, "postgres://"), strings.HasPrefix(d.URL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(d.URL, "sqlite://"), strings.HasPrefix(d.URL, "file:"):
		return DriverSQLite
	}
	return ""
}

// SQLitePath returns the database path for a sqlite:// URL. file: URLs are passed
// through to the driver unchanged.
func (d DatabaseConfig) SQLitePath() string {
	return strings.TrimPrefix(d.URL, "sqlite://")
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL uses an
// in-process cache.
type CacheConfig struct {
	URL    string
	Prefix string
	TTL    time.Duration
}

// NATSConfig holds NATS connection settings. An empty URL disables event publishing.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// CatalogConfig holds study content settings.
type CatalogConfig struct {
	Dir                  string // empty uses the embedded seed
	MinQuestionsPerTopic int
}

// ChatConfig holds assistant settings.
type ChatConfig struct {
	ReplyDelay       time.Duration
	WebSocketEnabled bool
}

// StudyConfig holds session tracking settings.
type StudyConfig struct {
	UserID        string
	RestartPolicy string // "replace" or "end_previous"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with REVISE_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("REVISE_SERVER_PORT", 8080),
			Host:            envStr("REVISE_SERVER_HOST", "0.0.0.0"),
			CORSOrigins:     envList("REVISE_SERVER_CORS_ORIGINS", []string{"http://localhost:5173"}),
			ShutdownTimeout: envDuration("REVISE_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:      envStr("REVISE_DATABASE_URL", ""),
			MaxConns: envInt("REVISE_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("REVISE_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL:    envStr("REVISE_CACHE_URL", ""),
			Prefix: envStr("REVISE_CACHE_PREFIX", "reviserx"),
			TTL:    envDuration("REVISE_CACHE_TTL", 10*time.Minute),
		},
		NATS: NATSConfig{
			URL:           envStr("REVISE_NATS_URL", ""),
			SubjectPrefix: envStr("REVISE_NATS_SUBJECT_PREFIX", "reviserx.study"),
		},
		Catalog: CatalogConfig{
			Dir:                  envStr("REVISE_CATALOG_DIR", ""),
			MinQuestionsPerTopic: envInt("REVISE_CATALOG_MIN_QUESTIONS", 10),
		},
		Chat: ChatConfig{
			ReplyDelay:       envDuration("REVISE_CHAT_REPLY_DELAY", 500*time.Millisecond),
			WebSocketEnabled: envBool("REVISE_CHAT_WEBSOCKET_ENABLED", true),
		},
		Study: StudyConfig{
			UserID:        envStr("REVISE_STUDY_USER_ID", "user1"),
			RestartPolicy: envStr("REVISE_STUDY_RESTART_POLICY", "replace"),
		},
		Log: LogConfig{
			Level:  envStr("REVISE_LOG_LEVEL", "info"),
			Format: envStr("REVISE_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("REVISE_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Driver() == "" {
		return fmt.Errorf("REVISE_DATABASE_URL must be empty or a postgres://, sqlite:// or file: URL")
	}

	if c.Catalog.MinQuestionsPerTopic < 1 {
		return fmt.Errorf("REVISE_CATALOG_MIN_QUESTIONS must be at least 1, got %d", c.Catalog.MinQuestionsPerTopic)
	}

	if c.Chat.ReplyDelay < 0 {
		return fmt.Errorf("REVISE_CHAT_REPLY_DELAY must not be negative, got %s", c.Chat.ReplyDelay)
	}

	switch strings.ToLower(c.Study.RestartPolicy) {
	case "replace", "end_previous":
	default:
		return fmt.Errorf("REVISE_STUDY_RESTART_POLICY must be 'replace' or 'end_previous', got %q", c.Study.RestartPolicy)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("REVISE_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("REVISE_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
