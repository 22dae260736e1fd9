package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (SCRIPTDECK_SERVER_BASE_URL).
const EnvPrefix = "SCRIPTDECK"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Unmarshal does not merge env vars into nested structs once a file is read.
	l.applyEnvOverrides(cfg)

	expandPaths(cfg)
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "scriptdeck"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "scriptdeck"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)
	bindEnvVars(v)
	v.AutomaticEnv()
}

func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("global.data_dir", cfg.Global.DataDir)

	v.SetDefault("server.base_url", cfg.Server.BaseURL)
	v.SetDefault("server.timeout", cfg.Server.Timeout)
	v.SetDefault("server.token", cfg.Server.Token)

	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.action_timeout", cfg.Sync.ActionTimeout)
	v.SetDefault("sync.log_buffer_bytes", cfg.Sync.LogBufferBytes)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.status_ttl", cfg.TUI.StatusTTL)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key. Values set here win over every other source,
// which is how CLI flags are applied.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}

// envBindings lists every key that accepts a SCRIPTDECK_* override.
var envBindings = []string{
	"global.data_dir",
	"server.base_url",
	"server.timeout",
	"server.token",
	"sync.poll_interval",
	"sync.action_timeout",
	"sync.log_buffer_bytes",
	"logging.level",
	"logging.format",
	"logging.file",
	"logging.enable_caller",
	"tui.theme",
	"tui.status_ttl",
}

// EnvVar returns the environment variable bound to a config key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func bindEnvVars(v *viper.Viper) {
	for _, key := range envBindings {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

// applyEnvOverrides copies explicitly set env vars onto cfg.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	if _, ok := os.LookupEnv(EnvVar("server.base_url")); ok {
		cfg.Server.BaseURL = v.GetString("server.base_url")
	}
	if _, ok := os.LookupEnv(EnvVar("server.token")); ok {
		cfg.Server.Token = v.GetString("server.token")
	}
	if _, ok := os.LookupEnv(EnvVar("server.timeout")); ok {
		cfg.Server.Timeout = v.GetDuration("server.timeout")
	}
	if _, ok := os.LookupEnv(EnvVar("sync.poll_interval")); ok {
		cfg.Sync.PollInterval = v.GetDuration("sync.poll_interval")
	}
	if _, ok := os.LookupEnv(EnvVar("sync.action_timeout")); ok {
		cfg.Sync.ActionTimeout = v.GetDuration("sync.action_timeout")
	}
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if level := v.GetString("logging.level"); level != "" {
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" {
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}
}
