// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/forgedeck/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete forgedeck configuration.
type Config struct {
	// APIBase is the absolute base URL of the platform backend.
	APIBase string `toml:"api_base"`

	// InactivityTimeoutMs is the stream inactivity timeout in milliseconds.
	// If no event arrives for this long, the turn is aborted with a timeout.
	InactivityTimeoutMs int `toml:"inactivity_timeout_ms"`

	// MaxTitleLength is the maximum rune length of a derived conversation title.
	MaxTitleLength int `toml:"max_title_length"`

	// SendRatePerMin limits how many turns may be submitted per minute.
	// 0 disables the limit.
	SendRatePerMin int `toml:"send_rate_per_min"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Cache configuration
	Cache CacheConfig `toml:"cache"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is the color theme: "dark", "light", or "auto".
	Theme string `toml:"theme"`
	// Plain starts the console in the line-oriented REPL instead of the TUI.
	Plain bool `toml:"plain"`
}

// CacheConfig controls the local catalog cache.
type CacheConfig struct {
	// Enabled turns the SQLite catalog cache on.
	Enabled bool `toml:"enabled"`
	// Path is the cache database location (empty = ~/.forgedeck/catalog.db).
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default timeout and title limits. The inactivity timeout matches the
// backend's keepalive cadence with generous headroom.
const (
	DefaultInactivityTimeoutMs = 120000
	DefaultMaxTitleLength      = 60
	DefaultSendRatePerMin      = 20
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBase:             "https://console.morganforge.dev",
		InactivityTimeoutMs: DefaultInactivityTimeoutMs,
		MaxTitleLength:      DefaultMaxTitleLength,
		SendRatePerMin:      DefaultSendRatePerMin,
		UI: UIConfig{
			Theme: "auto",
		},
		Cache: CacheConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".forgedeck", "config.toml")
	}
	return filepath.Join(home, ".forgedeck", "config.toml")
}

// Load reads the configuration from the default path. A missing file is
// not an error; defaults (plus environment overrides) are returned.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the configuration from an explicit path, applies
// environment overrides, and validates the result.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies FORGEDECK_* environment variables on top
// of file values. Environment wins over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORGEDECK_API_BASE"); v != "" {
		cfg.APIBase = v
	}
	if v := os.Getenv("FORGEDECK_INACTIVITY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InactivityTimeoutMs = n
		}
	}
	if v := os.Getenv("FORGEDECK_THEME"); v != "" {
		cfg.UI.Theme = v
	}
}

// normalize fills zero values with defaults so a sparse file still
// yields a usable config.
func (c *Config) normalize() {
	if c.InactivityTimeoutMs <= 0 {
		c.InactivityTimeoutMs = DefaultInactivityTimeoutMs
	}
	if c.MaxTitleLength <= 0 {
		c.MaxTitleLength = DefaultMaxTitleLength
	}
	if c.SendRatePerMin < 0 {
		c.SendRatePerMin = 0
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "auto"
	}
	if c.Cache.Path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.Cache.Path = filepath.Join(home, ".forgedeck", "catalog.db")
		} else {
			c.Cache.Path = filepath.Join(".", ".forgedeck", "catalog.db")
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_base must be an absolute http(s) URL, got %q", ErrInvalidConfig, c.APIBase)
	}
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("%w: ui.theme must be dark, light, or auto, got %q", ErrInvalidConfig, c.UI.Theme)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration back to its default location atomically.
func (c *Config) Save() error {
	return c.SaveTo(DefaultPath())
}

// SaveTo writes the configuration to an explicit path atomically.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// =============================================================================
// GLOBAL ACCESS
// =============================================================================

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// Global returns the process-wide configuration, loading defaults if
// none has been set.
func Global() *Config {
	globalMu.RLock()
	cfg := globalCfg
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCfg == nil {
		globalCfg = DefaultConfig()
	}
	return globalCfg
}
