// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.InactivityTimeoutMs != DefaultInactivityTimeoutMs {
		t.Errorf("InactivityTimeoutMs = %d, want %d", cfg.InactivityTimeoutMs, DefaultInactivityTimeoutMs)
	}
	if cfg.MaxTitleLength != DefaultMaxTitleLength {
		t.Errorf("MaxTitleLength = %d, want %d", cfg.MaxTitleLength, DefaultMaxTitleLength)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.InactivityTimeoutMs != DefaultInactivityTimeoutMs {
		t.Errorf("expected default timeout, got %d", cfg.InactivityTimeoutMs)
	}
}

func TestLoadFrom_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
api_base = "https://console.example.com"
inactivity_timeout_ms = 30000
max_title_length = 40

[ui]
theme = "dark"

[cache]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIBase != "https://console.example.com" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.InactivityTimeoutMs != 30000 {
		t.Errorf("InactivityTimeoutMs = %d", cfg.InactivityTimeoutMs)
	}
	if cfg.MaxTitleLength != 40 {
		t.Errorf("MaxTitleLength = %d", cfg.MaxTitleLength)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("Theme = %q", cfg.UI.Theme)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled")
	}
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	t.Setenv("FORGEDECK_API_BASE", "https://override.example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.APIBase != "https://override.example.com" {
		t.Errorf("APIBase = %q, want env override", cfg.APIBase)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"relative api_base", func(c *Config) { c.APIBase = "/api" }, true},
		{"non-http scheme", func(c *Config) { c.APIBase = "ftp://x.example" }, true},
		{"empty api_base", func(c *Config) { c.APIBase = "" }, true},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.wantErr && err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.APIBase = "https://saved.example.com"
	cfg.MaxTitleLength = 42
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.APIBase != cfg.APIBase {
		t.Errorf("APIBase = %q, want %q", got.APIBase, cfg.APIBase)
	}
	if got.MaxTitleLength != 42 {
		t.Errorf("MaxTitleLength = %d", got.MaxTitleLength)
	}
}
