// Package paths resolves the lyphgraph configuration and data directories.
// An explicit flag wins, then the LYPHGRAPH_* environment variable, then
// the platform default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the platform base directories.
const AppName = "lyphgraph"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "LYPHGRAPH_CONFIG_DIR"
	EnvDataDir   = "LYPHGRAPH_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/lyphgraph (fallback ~/.config/lyphgraph)
// macOS:   ~/Library/Application Support/lyphgraph
// Windows: %APPDATA%/lyphgraph
func DefaultConfigDir() (string, error) {
	return platformAppDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/lyphgraph (fallback ~/.local/share/lyphgraph)
// macOS and Windows: same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return platformAppDir("XDG_DATA_HOME", ".local", "share")
}

func platformAppDir(xdgVar string, homeRel ...string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), AppName)...), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > LYPHGRAPH_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > data_dir from config.yaml > LYPHGRAPH_DATA_DIR > DefaultDataDir().
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir := firstSet(flag, configValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultDataDir()
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
