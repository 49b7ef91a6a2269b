// Package xdg resolves the on-disk locations used by duners.
//
// Configuration follows the XDG Base Directory layout (~/.config/duners).
// Cached query results live under ~/.duners, a fixed location shared with
// other tools that read the same cache tree.
package xdg

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under every base directory.
const AppName = "duners"

// ConfigDir returns the XDG config directory for duners.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/duners when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, AppName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}

// DataDir returns ~/.duners. It is not created here; writers create the
// subdirectories they need.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+AppName), nil
}

// CacheDir returns ~/.duners/cache, the root of the result cache.
func CacheDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}
