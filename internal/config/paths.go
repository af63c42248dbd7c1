// Package config provides configuration management for drivefetch.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ontahood/drivefetch/internal/constants"
)

// SupportDir returns the per-user support directory for config, token, and logs.
//
// Locations:
//   - macOS: ~/Library/Application Support/drivefetch
//   - Windows: %APPDATA%\drivefetch
//   - Unix: $XDG_CONFIG_HOME/drivefetch or ~/.config/drivefetch
func SupportDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(home, "Library", "Application Support", constants.AppName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName)
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, constants.AppName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, constants.AppName)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(home, ".config", constants.AppName)
	}
}

// EnsureSupportDir creates the support directory if it doesn't exist.
// Uses 0700 permissions since the directory holds the OAuth token.
func EnsureSupportDir() error {
	return os.MkdirAll(SupportDir(), 0700)
}

// DefaultConfigPath returns the default location of the INI config file.
func DefaultConfigPath() string {
	return filepath.Join(SupportDir(), "config")
}

// DefaultTokenPath returns the default location of the OAuth token file.
func DefaultTokenPath() string {
	return filepath.Join(SupportDir(), "token.json")
}

// LogDirectory returns the directory used for log files.
func LogDirectory() string {
	return filepath.Join(SupportDir(), "logs")
}
