package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultPath returns the platform config file location:
// ~/.config/hush/config.yaml on Linux (honoring XDG_CONFIG_HOME),
// ~/Library/Application Support/hush/config.yaml on macOS, and
// %LOCALAPPDATA%\hush\config.yaml on Windows.
func DefaultPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "hush", "config.yaml"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "hush", "config.yaml"), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "hush", "config.yaml"), nil
	}
}
