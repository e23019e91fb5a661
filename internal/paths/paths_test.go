package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform swaps the platform hooks for the duration of a test.
func fakePlatform(t *testing.T, goos, home, userConfig string) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.goos = goos
	platformDir.homeDir = func() (string, error) { return home, nil }
	platformDir.userConfigDir = func() (string, error) { return userConfig, nil }
}

func TestDefaultDirs(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		xdgConfig  string
		xdgData    string
		wantConfig string
		wantData   string
	}{
		{
			name:       "linux with XDG",
			goos:       "linux",
			xdgConfig:  "/xdg/config",
			xdgData:    "/xdg/data",
			wantConfig: "/xdg/config/lyphgraph",
			wantData:   "/xdg/data/lyphgraph",
		},
		{
			name:       "linux home fallback",
			goos:       "linux",
			wantConfig: "/home/u/.config/lyphgraph",
			wantData:   "/home/u/.local/share/lyphgraph",
		},
		{
			name:       "darwin",
			goos:       "darwin",
			xdgConfig:  "/ignored",
			wantConfig: "/Users/u/Library/Application Support/lyphgraph",
			wantData:   "/Users/u/Library/Application Support/lyphgraph",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakePlatform(t, tt.goos, "/home/u", "/Users/u/Library/Application Support")
			t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)
			t.Setenv("XDG_DATA_HOME", tt.xdgData)

			got, err := DefaultConfigDir()
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, got)

			got, err = DefaultDataDir()
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, got)
		})
	}
}

func TestDefaultDirHomeError(t *testing.T) {
	fakePlatform(t, "linux", "", "")
	platformDir.homeDir = func() (string, error) { return "", errors.New("no home") }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.Error(t, err)
}

func TestResolveConfigDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/u", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config"},
		{"env wins when flag empty", "", "/env/config", "/env/config"},
		{"platform default", "", "", "/home/u/.config/lyphgraph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	fakePlatform(t, "linux", "/home/u", "")
	t.Setenv("XDG_DATA_HOME", "")

	tests := []struct {
		name   string
		flag   string
		config string
		env    string
		want   string
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data"},
		{"config wins over env", "", "/config/data", "/env/data", "/config/data"},
		{"env when flag and config empty", "", "", "/env/data", "/env/data"},
		{"platform default", "", "", "", "/home/u/.local/share/lyphgraph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelativePathsBecomeAbsolute(t *testing.T) {
	t.Setenv(EnvConfigDir, "relative/env")
	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), got)

	t.Setenv(EnvDataDir, "")
	got, err = ResolveDataDir("", "relative/config")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got), got)
}
