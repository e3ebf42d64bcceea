package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Version is reported by /api/stats and the CLI.
const Version = "1.0.0"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	Database   DatabaseConfig
	Retention  RetentionConfig
	RateLimit  RateLimitConfig
	Sandbox    SandboxConfig
	Admin      AdminConfig
	Playground PlaygroundConfig
	Client     ClientConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" default:"3000"`
	Host        string   `envconfig:"HOST" default:"0.0.0.0"`
	PublicURL   string   `envconfig:"PUBLIC_URL" default:"http://localhost:3000"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// DatabaseConfig holds the data directory used by the hosting backend.
type DatabaseConfig struct {
	DataDir string `envconfig:"DATA_DIR" default:""`
}

// RetentionConfig holds the daily cleanup and backup schedule.
type RetentionConfig struct {
	SweepAt      string        `envconfig:"SWEEP_AT" default:"03:00"`
	MaxAge       time.Duration `envconfig:"RETENTION_MAX_AGE" default:"720h"`
	MinViews     int           `envconfig:"RETENTION_MIN_VIEWS" default:"10"`
	BackupAt     string        `envconfig:"BACKUP_AT" default:"04:00"`
	BackupMaxAge time.Duration `envconfig:"BACKUP_MAX_AGE" default:"168h"`
	Enabled      bool          `envconfig:"RETENTION_ENABLED" default:"true"`
}

// RateLimitConfig holds per-client limits for mutating endpoints.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	CreateLimit int           `envconfig:"RATE_LIMIT_CREATE" default:"50"`
	UpdateLimit int           `envconfig:"RATE_LIMIT_UPDATE" default:"30"`
	Enabled     bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig bounds headless sandbox runs.
type SandboxConfig struct {
	Timeout  time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	PoolSize int           `envconfig:"SANDBOX_POOL_SIZE" default:"8"`
	MaxTasks int           `envconfig:"SANDBOX_MAX_TASKS" default:"1000"`
}

// AdminConfig protects operational endpoints. TokenHash is a bcrypt hash;
// an empty hash disables the endpoints.
type AdminConfig struct {
	TokenHash string `envconfig:"ADMIN_TOKEN_HASH" default:""`
}

// PlaygroundConfig tunes the editing session.
type PlaygroundConfig struct {
	AutosaveDelay  time.Duration `envconfig:"PLAYGROUND_AUTOSAVE_DELAY" default:"1s"`
	RecomposeDelay time.Duration `envconfig:"PLAYGROUND_RECOMPOSE_DELAY" default:"0s"`
	MaxTokenBytes  int           `envconfig:"PLAYGROUND_MAX_TOKEN_BYTES" default:"4194304"`
}

// ClientConfig configures the hosting API client used for publishing.
type ClientConfig struct {
	BaseURL      string        `envconfig:"HOST_URL" default:"http://localhost:3000"`
	Timeout      time.Duration `envconfig:"HOST_TIMEOUT" default:"30s"`
	Retries      int           `envconfig:"HOST_RETRIES" default:"3"`
	RetryWaitMin time.Duration `envconfig:"HOST_RETRY_WAIT_MIN" default:"500ms"`
	RetryWaitMax time.Duration `envconfig:"HOST_RETRY_WAIT_MAX" default:"10s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3000",
			Host:        "0.0.0.0",
			PublicURL:   "http://localhost:3000",
			CORSOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level: "info",
		},
		Retention: RetentionConfig{
			SweepAt:      "03:00",
			MaxAge:       30 * 24 * time.Hour,
			MinViews:     10,
			BackupAt:     "04:00",
			BackupMaxAge: 7 * 24 * time.Hour,
			Enabled:      true,
		},
		RateLimit: RateLimitConfig{
			Window:      15 * time.Minute,
			CreateLimit: 50,
			UpdateLimit: 30,
			Enabled:     true,
		},
		Sandbox: SandboxConfig{
			Timeout:  5 * time.Second,
			PoolSize: 8,
			MaxTasks: 1000,
		},
		Playground: PlaygroundConfig{
			AutosaveDelay: time.Second,
			MaxTokenBytes: 4 << 20,
		},
		Client: ClientConfig{
			BaseURL:      "http://localhost:3000",
			Timeout:      30 * time.Second,
			Retries:      3,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 10 * time.Second,
		},
	}
}
