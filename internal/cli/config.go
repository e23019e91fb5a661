package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/lyphgraph/internal/paths"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "LYPHGRAPH"

	cfgKeyHost           = "host"
	cfgKeyPort           = "port"
	cfgKeyBaseURL        = "base_url"
	cfgKeyBackend        = "backend"
	cfgKeyDataDir        = "data_dir"
	cfgKeySchema         = "schema"
	cfgKeyConsoleLogging = "console_logging"
	cfgKeyLogLevel       = "log.level"
	cfgKeyLogDevelopment = "log.development"

	defaultHost = "localhost"
	defaultPort = 8888
)

// flagKeys maps command flags to the config keys they override.
var flagKeys = map[string]string{
	"host":            cfgKeyHost,
	"port":            cfgKeyPort,
	"base-url":        cfgKeyBaseURL,
	"console-logging": cfgKeyConsoleLogging,
	"log-level":       cfgKeyLogLevel,
	"dev":             cfgKeyLogDevelopment,
}

// Settings is the resolved process configuration.
type Settings struct {
	ConfigDir      string
	Host           string
	Port           int
	BaseURL        string
	Backend        string
	DataDir        string
	Schema         string
	ConsoleLogging bool
	Log            LogSettings
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level       string
	Development bool
}

// configFile is the document init writes to config.yaml.
type configFile struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	BaseURL        string `yaml:"base_url,omitempty"`
	Backend        string `yaml:"backend"`
	DataDir        string `yaml:"data_dir,omitempty"`
	Schema         string `yaml:"schema,omitempty"`
	ConsoleLogging bool   `yaml:"console_logging"`
	Log            struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// loadSettings resolves every setting: command flags, then LYPHGRAPH_*
// environment variables (a .env file in the working directory included),
// then config.yaml, then defaults.
func loadSettings(f *rootFlags, cmd *cobra.Command) (Settings, error) {
	_ = godotenv.Load()

	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return Settings{}, err
	}
	for name, key := range flagKeys {
		if fl := cmd.Flags().Lookup(name); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	dataDir, err := paths.ResolveDataDir(f.dataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return Settings{}, fmt.Errorf("resolve data dir: %w", err)
	}
	s := Settings{
		ConfigDir:      configDir,
		Host:           v.GetString(cfgKeyHost),
		Port:           v.GetInt(cfgKeyPort),
		BaseURL:        v.GetString(cfgKeyBaseURL),
		Backend:        v.GetString(cfgKeyBackend),
		DataDir:        dataDir,
		Schema:         v.GetString(cfgKeySchema),
		ConsoleLogging: v.GetBool(cfgKeyConsoleLogging),
		Log: LogSettings{
			Level:       v.GetString(cfgKeyLogLevel),
			Development: v.GetBool(cfgKeyLogDevelopment),
		},
	}
	if f.schema != "" {
		s.Schema = f.schema
	}
	if s.BaseURL == "" {
		s.BaseURL = fmt.Sprintf("http://%s:%d", s.Host, s.Port)
	}
	if err := (types.Config{Backend: s.Backend, DataDir: s.DataDir}).Validate(); err != nil {
		return Settings{}, types.Configf("backend "+s.Backend, "%v", err)
	}
	return s, nil
}

// loadConfig reads config.yaml from configDir using Viper. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyHost, defaultHost)
	v.SetDefault(cfgKeyPort, defaultPort)
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyConsoleLogging, true)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyLogDevelopment, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml in configDir from s. An
// existing file is left alone.
func writeConfigIfMissing(configDir string, s Settings) (bool, error) {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}

	var cfg configFile
	cfg.Host = s.Host
	cfg.Port = s.Port
	cfg.Backend = s.Backend
	cfg.DataDir = s.DataDir
	cfg.Schema = s.Schema
	cfg.ConsoleLogging = s.ConsoleLogging
	cfg.Log.Level = s.Log.Level
	cfg.Log.Development = s.Log.Development

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
