package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Capture.PollIntervalMs != 120 {
		t.Errorf("expected poll interval 120, got %d", cfg.Capture.PollIntervalMs)
	}
	if cfg.Capture.MaxAttempts != 15 {
		t.Errorf("expected 15 max attempts, got %d", cfg.Capture.MaxAttempts)
	}
	if cfg.Shortcut.Binding != "ctrl+shift+e" {
		t.Errorf("unexpected default binding: %s", cfg.Shortcut.Binding)
	}
	if !strings.Contains(cfg.Storage.Path, "redraft") {
		t.Errorf("storage path should contain redraft: %s", cfg.Storage.Path)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Capture.MaxAttempts != 15 {
		t.Errorf("missing file should yield defaults, got max attempts %d", cfg.Capture.MaxAttempts)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = 1

[api]
base_url = "https://rewrite.example.com"
timeout_sec = 30

[shortcut]
binding = "ctrl+alt+r"
enabled = false

[capture]
poll_interval_ms = 80
max_attempts = 10
settle_delay_ms = 150
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://rewrite.example.com" {
		t.Errorf("base_url not applied: %s", cfg.API.BaseURL)
	}
	if cfg.Shortcut.Binding != "ctrl+alt+r" {
		t.Errorf("binding not applied: %s", cfg.Shortcut.Binding)
	}
	if cfg.Shortcut.Enabled {
		t.Error("enabled=false not applied")
	}
	if got := cfg.PollInterval(); got != 80*time.Millisecond {
		t.Errorf("poll interval: got %v", got)
	}
	if got := cfg.SettleDelay(); got != 150*time.Millisecond {
		t.Errorf("settle delay: got %v", got)
	}
	if got := cfg.APITimeout(); got != 30*time.Second {
		t.Errorf("api timeout: got %v", got)
	}
	// Unset sections keep defaults.
	if cfg.Capture.MaxAttempts != 10 {
		t.Errorf("max attempts: got %d", cfg.Capture.MaxAttempts)
	}
	if cfg.Vault.Sealer != "auto" {
		t.Errorf("vault sealer default lost: %s", cfg.Vault.Sealer)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: "https://rewrite.example.com"
shortcut:
  binding: "ctrl+shift+x"
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Shortcut.Binding != "ctrl+shift+x" {
		t.Errorf("yaml binding not applied: %s", cfg.Shortcut.Binding)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"relative base url", func(c *Config) { c.API.BaseURL = "not-a-url" }},
		{"empty binding", func(c *Config) { c.Shortcut.Binding = "" }},
		{"zero poll interval", func(c *Config) { c.Capture.PollIntervalMs = 0 }},
		{"zero attempts", func(c *Config) { c.Capture.MaxAttempts = 0 }},
		{"negative settle", func(c *Config) { c.Capture.SettleDelayMs = -1 }},
		{"bad sealer", func(c *Config) { c.Vault.Sealer = "hsm" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDRAFT_API_URL", "https://staging.example.com")
	t.Setenv("REDRAFT_SHORTCUT_BINDING", "ctrl+shift+z")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://staging.example.com" {
		t.Errorf("env override not applied: %s", cfg.API.BaseURL)
	}
	if cfg.Shortcut.Binding != "ctrl+shift+z" {
		t.Errorf("env override not applied: %s", cfg.Shortcut.Binding)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Shortcut.Enabled = false

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.API.BaseURL != cfg.API.BaseURL {
		t.Errorf("base_url lost in round trip: %s", loaded.API.BaseURL)
	}
	if loaded.Shortcut.Enabled {
		t.Error("enabled flag lost in round trip")
	}
}
