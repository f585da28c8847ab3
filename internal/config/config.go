// Package config loads daemon settings from the environment and an
// optional YAML policy file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Persistence
	DBPath    string `envconfig:"DB_PATH" default:"tabpile.db"`
	KVBackend string `envconfig:"KV_BACKEND" default:"sqlite"` // "sqlite", "memory" or "redis"
	RedisURL  string `envconfig:"REDIS_URL"`

	// Tracker
	ArchiveFolder   string        `envconfig:"ARCHIVE_FOLDER" default:"Pile of Shame"`
	SweepPeriod     time.Duration `envconfig:"SWEEP_PERIOD" default:"1m"`
	TimerName       string        `envconfig:"TIMER_NAME" default:"pos_alarm"`
	EventBufferSize int           `envconfig:"EVENT_BUFFER_SIZE" default:"256"`
	PolicyFile      string        `envconfig:"POLICY_FILE"`

	// Browser host (optional; without it the daemon only serves the API)
	BrowserEnabled   bool   `envconfig:"BROWSER_ENABLED" default:"false"`
	BrowserHeadless  bool   `envconfig:"BROWSER_HEADLESS" default:"true"`
	BrowserStartURLs string `envconfig:"BROWSER_START_URLS"`              // Comma-separated
	BrowserInstall   bool   `envconfig:"BROWSER_INSTALL" default:"false"` // Download Chromium on start

	// Management API
	MgmtListenAddr     string `envconfig:"MGMT_LISTEN_ADDR" default:":8090"`
	MgmtAuthMode       string `envconfig:"MGMT_AUTH_MODE" default:"api-key"` // "api-key", "jwt" or "none"
	MgmtAPIKey         string `envconfig:"MGMT_API_KEY"`
	MgmtJWTSecret      string `envconfig:"MGMT_JWT_SECRET"`
	MgmtRateLimitRPS   int    `envconfig:"MGMT_RATE_LIMIT_RPS" default:"100"`
	MgmtRateLimitBurst int    `envconfig:"MGMT_RATE_LIMIT_BURST" default:"200"`
	MgmtCORSOrigins    string `envconfig:"MGMT_CORS_ORIGINS"`
}

// RedisEnabled returns true if the redis KV backend is selected.
func (c *Config) RedisEnabled() bool {
	return strings.EqualFold(c.KVBackend, "redis")
}

// StartURLs returns the parsed list of browser start URLs.
func (c *Config) StartURLs() []string {
	return splitList(c.BrowserStartURLs)
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.KVBackend) {
	case "sqlite", "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when KV_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown KV_BACKEND %q", c.KVBackend)
	}

	switch c.MgmtAuthMode {
	case "api-key", "none":
	case "jwt":
		if c.MgmtJWTSecret == "" {
			return fmt.Errorf("MGMT_JWT_SECRET is required when MGMT_AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown MGMT_AUTH_MODE %q", c.MgmtAuthMode)
	}

	if c.SweepPeriod <= 0 {
		return fmt.Errorf("SWEEP_PERIOD must be positive, got %s", c.SweepPeriod)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
