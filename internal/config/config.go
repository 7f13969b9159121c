package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL     string `mapstructure:"PORTAL_API_BASE_URL"`
	SessionFile    string `mapstructure:"PORTAL_SESSION_FILE"`
	RequestTimeout int    `mapstructure:"PORTAL_REQUEST_TIMEOUT"`
	CacheSize      int    `mapstructure:"PORTAL_CACHE_SIZE"`
	ColorMode      string `mapstructure:"PORTAL_COLOR"`
	LogLevel       string `mapstructure:"PORTAL_LOG_LEVEL"`
	SandboxPort    string `mapstructure:"PORTAL_SANDBOX_PORT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORTAL_API_BASE_URL", "http://localhost:8000")
	v.SetDefault("PORTAL_SESSION_FILE", "")
	v.SetDefault("PORTAL_REQUEST_TIMEOUT", 30)
	v.SetDefault("PORTAL_CACHE_SIZE", 512)
	v.SetDefault("PORTAL_COLOR", "auto")
	v.SetDefault("PORTAL_LOG_LEVEL", "warn")
	v.SetDefault("PORTAL_SANDBOX_PORT", "8000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORTAL_API_BASE_URL")
	v.BindEnv("PORTAL_SESSION_FILE")
	v.BindEnv("PORTAL_REQUEST_TIMEOUT")
	v.BindEnv("PORTAL_CACHE_SIZE")
	v.BindEnv("PORTAL_COLOR")
	v.BindEnv("PORTAL_LOG_LEVEL")
	v.BindEnv("PORTAL_SANDBOX_PORT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("PORTAL_API_BASE_URL is required")
	}

	return cfg, nil
}

// APIRoot returns the fully-qualified API root, always with a trailing
// slash, e.g. "http://localhost:8000/api/".
func (c *Config) APIRoot() string {
	base := strings.TrimRight(c.APIBaseURL, "/")
	return base + "/api/"
}

// ResolvedSessionFile returns the configured session file path, defaulting
// to ~/.portalctl/session.json when unset.
func (c *Config) ResolvedSessionFile() string {
	if c.SessionFile != "" {
		return c.SessionFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".portalctl", "session.json")
	}
	return filepath.Join(home, ".portalctl", "session.json")
}
