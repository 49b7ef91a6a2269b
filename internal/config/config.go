// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the API key comes from the
// environment, a .env dotfile or the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"duners/cli/internal/xdg"
)

// DefaultBaseURL is the public Dune API origin.
const DefaultBaseURL = "https://api.dune.com"

// Environment variables that override file settings.
const (
	EnvBaseURL  = "DUNE_API_BASE_URL"
	EnvCacheDir = "DUNERS_CACHE_DIR"
	EnvLogLevel = "DUNERS_LOG_LEVEL"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel string `json:"log_level"`
	BaseURL  string `json:"base_url"`
	// CacheDir overrides the result cache root (~/.duners/cache).
	CacheDir       string `json:"cache_dir,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Output         string `json:"output"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() Config {
	return Config{
		LogLevel:       "info",
		BaseURL:        DefaultBaseURL,
		TimeoutSeconds: 30,
		Output:         "table",
	}
}

// Timeout returns the HTTP client timeout; zero disables it.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration and applies environment overrides; a missing file
// yields defaults.
func Load() (Config, error) {
	p, err := path()
	if err != nil {
		return Defaults(), err
	}
	c, err := LoadFile(p)
	if err != nil {
		return c, err
	}
	return c.withEnv(os.LookupEnv), nil
}

// LoadFile reads configuration from p without environment overrides.
// Fields absent from the file keep their defaults.
func LoadFile(p string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) withEnv(lookup func(string) (string, bool)) Config {
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvCacheDir); ok && strings.TrimSpace(v) != "" {
		c.CacheDir = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
