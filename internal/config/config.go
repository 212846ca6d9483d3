// Package config loads and persists notchstat configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all notchstat configuration.
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Quota      QuotaConfig      `toml:"quota"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// PathsConfig holds the locations of session logs and the cache.
type PathsConfig struct {
	// AgentDir overrides the agent data directory (default ~/.claude).
	// Session logs live under <AgentDir>/projects.
	AgentDir string `toml:"agent_dir,omitempty"`

	// DesktopDirs are extra log trees scanned recursively, for desktop-app
	// exports alongside the CLI's own logs.
	DesktopDirs []string `toml:"desktop_dirs,omitempty"`

	// CacheDir overrides the cache directory (default XDG cache).
	CacheDir string `toml:"cache_dir,omitempty"`
}

// QuotaConfig holds claude.ai rate-limit polling settings.
type QuotaConfig struct {
	SessionKey string `toml:"session_key,omitempty"`
	BaseURL    string `toml:"base_url,omitempty"`
}

// DaemonConfig holds background-service settings.
type DaemonConfig struct {
	// Addr is the local HTTP listen address.
	Addr string `toml:"addr"`

	// RefreshSeconds is the interval between cache refresh ticks.
	RefreshSeconds int `toml:"refresh_seconds"`
}

// AppearanceConfig holds theme settings for the watch view.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Daemon: DaemonConfig{
			Addr:           "127.0.0.1:43110",
			RefreshSeconds: 60,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// RefreshInterval returns the daemon tick interval, floored at 10s.
func (c Config) RefreshInterval() time.Duration {
	secs := c.Daemon.RefreshSeconds
	if secs < 10 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}

// AgentDir resolves the agent data directory.
func (c Config) AgentDir() string {
	if c.Paths.AgentDir != "" {
		return c.Paths.AgentDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// ProjectsDir resolves the session log root under the agent directory.
func (c Config) ProjectsDir() string {
	return filepath.Join(c.AgentDir(), "projects")
}

// CacheDir resolves the cache directory.
func (c Config) CacheDir() string {
	if c.Paths.CacheDir != "" {
		return c.Paths.CacheDir
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "notchstat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "notchstat")
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "notchstat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "notchstat")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// GetSessionKey returns the claude.ai session key from env var or config,
// in that order.
func GetSessionKey(cfg Config) string {
	if key := os.Getenv("CLAUDE_SESSION_KEY"); key != "" {
		return key
	}
	return cfg.Quota.SessionKey
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
