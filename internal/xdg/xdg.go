// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package xdg provides XDG Base Directory paths for plank.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "plank"

// ConfigFileName is the document looked up in ConfigDir by default.
const ConfigFileName = "plank.toml"

// ConfigDir returns the XDG config directory for plank.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for plank.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	return dir("XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the XDG state directory for plank.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() string {
	return dir("XDG_STATE_HOME", ".local", "state")
}

// ConfigFile returns the default configuration document path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// PluginsDir returns the shared plugin discovery root.
func PluginsDir() string {
	return filepath.Join(DataDir(), "plugins")
}

func dir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
