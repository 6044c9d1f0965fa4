// Package config handles configuration loading, validation, and management
// for redraftd.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// API configures the remote rewrite service.
	API APIConfig `toml:"api" json:"api" yaml:"api"`

	// Shortcut configures the global hotkey.
	Shortcut ShortcutConfig `toml:"shortcut" json:"shortcut" yaml:"shortcut"`

	// Capture configures the clipboard capture loop.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Vault configures credential encryption at rest.
	Vault VaultConfig `toml:"vault" json:"vault" yaml:"vault"`

	// Storage configures local persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IPC configures the daemon control socket.
	IPC IPCConfig `toml:"ipc" json:"ipc" yaml:"ipc"`
}

// APIConfig holds remote service settings.
type APIConfig struct {
	// BaseURL is the rewrite service origin, e.g. "https://api.redraft.app".
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single rewrite request. 0 means no local deadline
	// beyond the transport's own.
	TimeoutSec int `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
}

// ShortcutConfig holds global hotkey settings.
type ShortcutConfig struct {
	// Binding is the key chord, e.g. "ctrl+shift+e". On macOS "ctrl" maps
	// to the command key.
	Binding string `toml:"binding" json:"binding" yaml:"binding"`

	// Enabled controls whether the hotkey is registered at startup.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// CaptureConfig holds clipboard capture loop settings.
type CaptureConfig struct {
	// PollIntervalMs is the clipboard polling interval in milliseconds.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// MaxAttempts bounds the number of clipboard polls per capture.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts" yaml:"max_attempts"`

	// SettleDelayMs is the pause between writing the rewritten text to the
	// clipboard and issuing the paste chord.
	SettleDelayMs int `toml:"settle_delay_ms" json:"settle_delay_ms" yaml:"settle_delay_ms"`
}

// VaultConfig holds credential encryption settings.
type VaultConfig struct {
	// Sealer selects the encryption-at-rest backend: "auto", "platform",
	// "software", or "none". "auto" tries platform first, then software.
	Sealer string `toml:"sealer" json:"sealer" yaml:"sealer"`

	// KeyPath is where the software sealer stores its key file.
	KeyPath string `toml:"key_path" json:"key_path" yaml:"key_path"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `toml:"level" json:"level" yaml:"level"`
	Format   string `toml:"format" json:"format" yaml:"format"`
	Output   string `toml:"output" json:"output" yaml:"output"`
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// IPCConfig holds control socket settings.
type IPCConfig struct {
	// SocketPath is the unix socket path (ignored on Windows, which uses a
	// named pipe derived from the product name).
	SocketPath string `toml:"socket_path" json:"socket_path" yaml:"socket_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Version: Version,
		API: APIConfig{
			BaseURL:    "https://api.redraft.app",
			TimeoutSec: 0,
		},
		Shortcut: ShortcutConfig{
			Binding: "ctrl+shift+e",
			Enabled: true,
		},
		Capture: CaptureConfig{
			PollIntervalMs: 120,
			MaxAttempts:    15,
			SettleDelayMs:  200,
		},
		Vault: VaultConfig{
			Sealer:  "auto",
			KeyPath: filepath.Join(dataDir, "vault.key"),
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "redraft.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		IPC: IPCConfig{
			SocketPath: filepath.Join(dataDir, "daemon.sock"),
		},
	}
}

// DataDir returns the base redraft data directory.
// REDRAFT_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("REDRAFT_DATA_DIR"); envDir != "" {
		return envDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".redraft"
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "redraft")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "redraft")
		}
		return filepath.Join(home, "redraft")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "redraft")
		}
		return filepath.Join(home, ".local", "share", "redraft")
	}
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// ApplyEnvOverrides applies environment variable overrides.
// Variables are prefixed with REDRAFT_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("REDRAFT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("REDRAFT_SHORTCUT_BINDING"); v != "" {
		c.Shortcut.Binding = v
	}
	if v := os.Getenv("REDRAFT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("REDRAFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REDRAFT_IPC_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("REDRAFT_VAULT_SEALER"); v != "" {
		c.Vault.Sealer = v
	}
	if v := os.Getenv("REDRAFT_API_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.TimeoutSec = n
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url is not a valid URL: %q", c.API.BaseURL)
	}
	if c.Shortcut.Binding == "" {
		return fmt.Errorf("shortcut.binding must not be empty")
	}
	if c.Capture.PollIntervalMs <= 0 {
		return fmt.Errorf("capture.poll_interval_ms must be positive, got %d", c.Capture.PollIntervalMs)
	}
	if c.Capture.MaxAttempts <= 0 {
		return fmt.Errorf("capture.max_attempts must be positive, got %d", c.Capture.MaxAttempts)
	}
	if c.Capture.SettleDelayMs < 0 {
		return fmt.Errorf("capture.settle_delay_ms must not be negative, got %d", c.Capture.SettleDelayMs)
	}
	switch c.Vault.Sealer {
	case "auto", "platform", "software", "none":
	default:
		return fmt.Errorf("vault.sealer must be one of auto, platform, software, none; got %q", c.Vault.Sealer)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	return nil
}

// EnsureDirectories creates all directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		filepath.Dir(c.Vault.KeyPath),
		filepath.Dir(c.IPC.SocketPath),
	}
	if c.Logging.FilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the capture poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Capture.PollIntervalMs) * time.Millisecond
}

// SettleDelay returns the clipboard settle delay as a duration.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Capture.SettleDelayMs) * time.Millisecond
}

// APITimeout returns the rewrite request timeout. Zero disables the local
// deadline.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}
