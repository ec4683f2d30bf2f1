// Package config loads application configuration from environment variables.
// All variables use the STATSQUEST_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvGoogleAPIKey names the Gemini credential. It is read at call time, not at startup.
const EnvGoogleAPIKey = "STATSQUEST_AI_GOOGLE_API_KEY"

// Progress persistence backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	AI             AIConfig
	Progress       ProgressConfig
	Quiz           QuizConfig
	Log            LogConfig
	CurriculumPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// AllowedOrigins are extra Origin host patterns accepted by the WebSocket feed.
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings.
type CacheConfig struct {
	URL string
}

// AIConfig holds Gemini settings. The API key is deliberately absent; see GoogleAPIKey.
type AIConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ProgressConfig selects where the progress blob lives.
type ProgressConfig struct {
	Backend  string
	Key      string
	FilePath string
}

// QuizConfig holds quiz tracker settings.
type QuizConfig struct {
	TTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with STATSQUEST_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("STATSQUEST_SERVER_PORT", 8080),
			Host: envStr("STATSQUEST_SERVER_HOST", "0.0.0.0"),

			AllowedOrigins: envList("STATSQUEST_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      envStr("STATSQUEST_DATABASE_URL", ""),
			MaxConns: envInt("STATSQUEST_DATABASE_MAX_CONNS", 5),
			MinConns: envInt("STATSQUEST_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("STATSQUEST_CACHE_URL", ""),
		},
		AI: AIConfig{
			Model:   envStr("STATSQUEST_AI_MODEL", "gemini-2.5-flash"),
			BaseURL: envStr("STATSQUEST_AI_BASE_URL", ""),
			Timeout: envDuration("STATSQUEST_AI_TIMEOUT", 60*time.Second),
		},
		Progress: ProgressConfig{
			Backend:  strings.ToLower(envStr("STATSQUEST_PROGRESS_BACKEND", BackendFile)),
			Key:      envStr("STATSQUEST_PROGRESS_KEY", "statsquest-progress"),
			FilePath: envStr("STATSQUEST_PROGRESS_FILE", "./data/progress.json"),
		},
		Quiz: QuizConfig{
			TTL: envDuration("STATSQUEST_QUIZ_TTL", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  envStr("STATSQUEST_LOG_LEVEL", "info"),
			Format: envStr("STATSQUEST_LOG_FORMAT", "json"),
		},
		CurriculumPath: envStr("STATSQUEST_CURRICULUM_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.Progress.Backend {
	case BackendFile:
		if c.Progress.FilePath == "" {
			return fmt.Errorf("STATSQUEST_PROGRESS_FILE is required for the file backend")
		}
	case BackendRedis:
		if c.Cache.URL == "" {
			return fmt.Errorf("STATSQUEST_CACHE_URL is required for the redis backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("STATSQUEST_DATABASE_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STATSQUEST_PROGRESS_BACKEND must be one of file, redis, postgres, memory; got %q", c.Progress.Backend)
	}

	if c.Progress.Key == "" {
		return fmt.Errorf("STATSQUEST_PROGRESS_KEY must not be empty")
	}
	if c.Quiz.TTL <= 0 {
		return fmt.Errorf("STATSQUEST_QUIZ_TTL must be positive")
	}

	return nil
}

// GoogleAPIKey returns the Gemini credential from the environment as it is right now.
func GoogleAPIKey() string {
	return strings.TrimSpace(os.Getenv(EnvGoogleAPIKey))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
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
