// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	FrontendURL string
	LogLevel    slog.Level

	Database  DatabaseConfig
	LLM       LLMConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	// Transcript controls NDJSON conversation transcripts.
	Transcript TranscriptConfig
}

// DatabaseConfig selects the profile store backend.
type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

// LLMConfig selects the text generator.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	// GeneratorAddr is the remote genserver used by the grpc provider.
	GeneratorAddr string
}

// SessionConfig bounds coaching sessions.
type SessionConfig struct {
	TTL                time.Duration
	DrainIdleTimeout   time.Duration
	MaxBrainstormTurns int
	MaxRevisions       int
	MaxParseRetries    int
	PassScore          int
}

// RateLimitConfig limits replies per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// TranscriptConfig controls JSON conversation logging.
type TranscriptConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

var (
	validDrivers   = []string{"sqlite", "postgres"}
	validProviders = []string{"openai", "deepseek", "anthropic", "ollama", "grpc", "mock"}
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "50051"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:   getEnv("DB_PATH", "./data/writepal.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(getEnv("LLM_PROVIDER", "mock")),
			Model:         getEnv("LLM_MODEL", ""),
			APIKey:        getEnv("LLM_API_KEY", ""),
			BaseURL:       getEnv("LLM_BASE_URL", ""),
			GeneratorAddr: getEnv("GENERATOR_ADDR", "localhost:50051"),
		},
		Session: SessionConfig{
			TTL:                getEnvDuration("SESSION_TTL", 60*time.Minute),
			DrainIdleTimeout:   getEnvDuration("DRAIN_IDLE_TIMEOUT", 30*time.Second),
			MaxBrainstormTurns: getEnvInt("MAX_BRAINSTORM_TURNS", 8),
			MaxRevisions:       getEnvInt("MAX_REVISIONS", 3),
			MaxParseRetries:    getEnvInt("MAX_PARSE_RETRIES", 2),
			PassScore:          getEnvInt("PASS_SCORE", 80),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Dir:       getEnv("TRANSCRIPT_DIR", "./data/logs/transcripts"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if !slices.Contains(validDrivers, c.Database.Driver) {
		return fmt.Errorf("DB_DRIVER must be one of %s", strings.Join(validDrivers, ", "))
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
	}
	if !slices.Contains(validProviders, c.LLM.Provider) {
		return fmt.Errorf("LLM_PROVIDER must be one of %s", strings.Join(validProviders, ", "))
	}
	if c.LLM.Provider == "grpc" && c.LLM.GeneratorAddr == "" {
		return fmt.Errorf("GENERATOR_ADDR is required when LLM_PROVIDER=grpc")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.PassScore < 1 || c.Session.PassScore > 100 {
		return fmt.Errorf("PASS_SCORE must be between 1 and 100")
	}
	if c.Session.MaxBrainstormTurns <= 0 {
		return fmt.Errorf("MAX_BRAINSTORM_TURNS must be > 0")
	}
	if c.Session.MaxRevisions < 0 || c.Session.MaxParseRetries < 0 {
		return fmt.Errorf("MAX_REVISIONS and MAX_PARSE_RETRIES cannot be negative")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.Transcript.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_DIR cannot be empty")
	}
	if c.Transcript.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
