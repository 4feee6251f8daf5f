// Package storage journals the bot's per-turn decisions in BadgerDB so that
// its pacing can be reviewed after a session.
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "hybridbot"

// DataDir returns the platform-specific data directory, creating it if needed.
//   - macOS: ~/Library/Application Support/hybridbot/
//   - Linux: $XDG_DATA_HOME/hybridbot/ or ~/.local/share/hybridbot/
//   - Windows: %APPDATA%/hybridbot/
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(dataHome(runtime.GOOS, os.Getenv, home), appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// dataHome picks the per-user base directory for goos.
func dataHome(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support")
	case "windows":
		if dir := getenv("APPDATA"); dir != "" {
			return dir
		}
		return filepath.Join(home, "AppData", "Roaming")
	default:
		if dir := getenv("XDG_DATA_HOME"); dir != "" {
			return dir
		}
		return filepath.Join(home, ".local", "share")
	}
}

// JournalDir returns the directory holding the decision journal.
func JournalDir() (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(dataDir, "journal")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
