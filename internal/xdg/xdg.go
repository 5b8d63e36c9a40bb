// Package xdg provides XDG Base Directory paths for mudlark.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "mudlark"

// ConfigDir returns the XDG config directory for mudlark.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ProfileConfigDir returns the configuration directory for one profile.
// This is the path a script module sees through its host-services
// handle.
func ProfileConfigDir(profile string) string {
	return filepath.Join(ConfigDir(), "profiles", profile)
}

// DataDir returns the XDG data directory for mudlark.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// StateDir returns the XDG state directory for mudlark.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "state")
	}
	return filepath.Join(base, appName)
}

// ScriptLogDir returns the directory holding per-profile script logs.
func ScriptLogDir(profile string) string {
	return filepath.Join(StateDir(), "scriptlogs", profile)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
