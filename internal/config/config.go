// SPDX-License-Identifier: MIT

// Package config loads player configuration with ENV > file > defaults
// precedence. All environment variables use the LUMACAST_ prefix.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration of the player daemon.
type Config struct {
	// Identity and console access.
	DisplayID    string `yaml:"displayId"`
	ConsoleURL   string `yaml:"consoleUrl"`
	ConsoleToken string `yaml:"consoleToken"`

	// Local surfaces.
	ListenAddr     string `yaml:"listenAddr"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	DataDir        string `yaml:"dataDir"`

	// Push channel tuning.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	ReconnectAttempts int           `yaml:"reconnectAttempts"`
	ReconnectDelay    time.Duration `yaml:"reconnectDelay"`
	ConnectGrace      time.Duration `yaml:"connectGrace"`
	Lightweight       bool          `yaml:"lightweight"`

	// Playback.
	CacheMaxAge  time.Duration `yaml:"cacheMaxAge"`
	StallTimeout time.Duration `yaml:"stallTimeout"`

	// Recovery shell.
	MaxRetries int           `yaml:"maxRetries"`
	RetryDelay time.Duration `yaml:"retryDelay"`

	// View tracking.
	TrackingRate float64 `yaml:"trackingRate"`

	// Logging.
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
}

// Defaults returns the built-in configuration. Lightweight mode stretches
// the heartbeat and reconnect cadence to conserve resources on small devices.
func Defaults() Config {
	return Config{
		ConsoleURL:        "http://localhost:8080",
		ListenAddr:        ":8790",
		MetricsEnabled:    true,
		DataDir:           "/var/lib/lumacast",
		HeartbeatInterval: 30 * time.Second,
		ReconnectAttempts: 10,
		ReconnectDelay:    3 * time.Second,
		ConnectGrace:      10 * time.Second,
		CacheMaxAge:       0,
		StallTimeout:      0,
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		TrackingRate:      5,
		LogLevel:          "info",
		LogService:        "lumacast",
	}
}

// Load builds the configuration with precedence ENV > file > defaults.
// path may be empty, in which case the file layer is skipped.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DisplayID = ParseString("LUMACAST_DISPLAY_ID", cfg.DisplayID)
	cfg.ConsoleURL = ParseString("LUMACAST_CONSOLE_URL", cfg.ConsoleURL)
	cfg.ConsoleToken = ParseString("LUMACAST_CONSOLE_TOKEN", cfg.ConsoleToken)
	cfg.ListenAddr = ParseString("LUMACAST_LISTEN", cfg.ListenAddr)
	cfg.MetricsEnabled = ParseBool("LUMACAST_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.DataDir = ParseString("LUMACAST_DATA", cfg.DataDir)
	cfg.HeartbeatInterval = ParseDuration("LUMACAST_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.ReconnectAttempts = ParseInt("LUMACAST_RECONNECT_ATTEMPTS", cfg.ReconnectAttempts)
	cfg.ReconnectDelay = ParseDuration("LUMACAST_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.ConnectGrace = ParseDuration("LUMACAST_CONNECT_GRACE", cfg.ConnectGrace)
	cfg.Lightweight = ParseBool("LUMACAST_LIGHTWEIGHT", cfg.Lightweight)
	cfg.CacheMaxAge = ParseDuration("LUMACAST_CACHE_MAX_AGE", cfg.CacheMaxAge)
	cfg.StallTimeout = ParseDuration("LUMACAST_STALL_TIMEOUT", cfg.StallTimeout)
	cfg.MaxRetries = ParseInt("LUMACAST_MAX_RETRIES", cfg.MaxRetries)
	cfg.RetryDelay = ParseDuration("LUMACAST_RETRY_DELAY", cfg.RetryDelay)
	cfg.TrackingRate = ParseFloat("LUMACAST_TRACKING_RATE", cfg.TrackingRate)
	cfg.LogLevel = ParseString("LUMACAST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("LUMACAST_LOG_SERVICE", cfg.LogService)

	if cfg.Lightweight {
		cfg.applyLightweight()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyLightweight stretches intervals for resource-constrained displays:
// longer heartbeat, slower and fewer reconnect attempts.
func (c *Config) applyLightweight() {
	if c.HeartbeatInterval < time.Minute {
		c.HeartbeatInterval = time.Minute
	}
	if c.ReconnectDelay < 10*time.Second {
		c.ReconnectDelay = 10 * time.Second
	}
	if c.ReconnectAttempts > 5 {
		c.ReconnectAttempts = 5
	}
}

// Validate fails fast on configuration that cannot possibly work.
func (c Config) Validate() error {
	if c.DisplayID == "" {
		return errors.New("LUMACAST_DISPLAY_ID is required")
	}
	u, err := url.Parse(c.ConsoleURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid console URL %q", c.ConsoleURL)
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.ReconnectAttempts < 1 {
		return errors.New("reconnect attempts must be at least 1")
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	return nil
}

// MaskURL removes user info from a URL string for safe logging.
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsed.User = nil
	return parsed.String()
}
