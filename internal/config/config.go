// Package config provides application configuration management.
// Configuration is loaded from environment variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Token store backends.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// ErrInvalidConfig is returned when parsed values are inconsistent.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all application configuration.
type Config struct {
	// Application settings
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// REST backend
	APIBaseURL string `env:"API_BASE_URL,required"`
	APIKey     string `env:"API_KEY"`

	// AI inference service
	AIBaseURL   string `env:"AI_BASE_URL" envDefault:"http://localhost:8000"`
	AIVideoPath string `env:"AI_VIDEO_PATH" envDefault:"/video_feed"`

	// Payment processor publishable key, shown to users before checkout
	StripePublishableKey string `env:"STRIPE_PUBLISHABLE_KEY"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	// Session persistence
	TokenStore     string `env:"TOKEN_STORE" envDefault:"file"`
	TokenStorePath string `env:"TOKEN_STORE_PATH"`

	// Cache (Redis), optional
	RedisURL        string        `env:"REDIS_URL"`
	RedisKeyPrefix  string        `env:"REDIS_KEY_PREFIX" envDefault:"greencycle:"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"10m"`

	// Offline catalog mirror (PostgreSQL), optional
	DatabaseURL string `env:"DATABASE_URL"`

	// Local callback server for checkout redirects
	CallbackPort    int           `env:"CALLBACK_PORT" envDefault:"8787"`
	CallbackTimeout time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"10m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// Camera capture throttle (frames per second sent for analysis)
	CaptureRPS float64 `env:"CAPTURE_RPS" envDefault:"0.5"`

	// Object storage for annotated AI images, optional
	Storage Storage `envPrefix:"MINIO_"`
}

// Storage contains object storage parameters.
type Storage struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"greencycle-predictions"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Enabled reports whether object storage is configured.
func (s Storage) Enabled() bool {
	return s.Endpoint != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// ResolveTokenStorePath returns the token file location, defaulting to the
// user config directory.
func (c *Config) ResolveTokenStorePath() (string, error) {
	if c.TokenStorePath != "" {
		return c.TokenStorePath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "greencycle", "session.json"), nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreMemory:
	case TokenStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: TOKEN_STORE=redis requires REDIS_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown TOKEN_STORE %q", ErrInvalidConfig, c.TokenStore)
	}

	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("%w: API_BASE_URL must be an http(s) URL", ErrInvalidConfig)
	}

	if c.CaptureRPS <= 0 {
		return fmt.Errorf("%w: CAPTURE_RPS must be positive", ErrInvalidConfig)
	}

	return nil
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is applied first; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
