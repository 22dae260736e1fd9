// Package config handles scriptdeck configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Interval and buffer bounds enforced by Validate.
const (
	MinPollInterval    = 100 * time.Millisecond
	MinLogBufferBytes  = 64 * 1024
	DefaultBaseURL     = "http://localhost:8000/api"
	DefaultLogFileName = "scriptdeck.log"
)

// Config is the root configuration structure for scriptdeck.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Server is the remote script service.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Sync controls polling and action behavior.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global scriptdeck settings.
type GlobalConfig struct {
	// DataDir holds the log file and persisted console state
	// (default: ~/.local/share/scriptdeck).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig describes how to reach the script service.
type ServerConfig struct {
	// BaseURL is the API root, including the /api prefix.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Token is an optional bearer token.
	Token string `yaml:"token" mapstructure:"token"`
}

// SyncConfig contains polling and action settings.
type SyncConfig struct {
	// PollInterval is how often the script list is re-fetched.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// ActionTimeout bounds a single user-initiated action.
	ActionTimeout time.Duration `yaml:"action_timeout" mapstructure:"action_timeout"`

	// LogBufferBytes caps the in-memory log view.
	LogBufferBytes int `yaml:"log_buffer_bytes" mapstructure:"log_buffer_bytes"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path. The console always logs to a file.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// StatusTTL is how long a status line message stays visible.
	StatusTTL time.Duration `yaml:"status_ttl" mapstructure:"status_ttl"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir: filepath.Join(homeDir, ".local", "share", "scriptdeck"),
		},
		Server: ServerConfig{
			BaseURL: DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:   3 * time.Second,
			ActionTimeout:  10 * time.Second,
			LogBufferBytes: 4 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: TUIConfig{
			Theme:     "default",
			StatusTTL: 4 * time.Second,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.Server.BaseURL)
	if base == "" {
		return fmt.Errorf("server.base_url is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("server.base_url is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.base_url must include a host")
	}

	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}

	if c.Sync.PollInterval < MinPollInterval {
		return fmt.Errorf("sync.poll_interval must be at least %s", MinPollInterval)
	}
	if c.Sync.ActionTimeout <= 0 {
		return fmt.Errorf("sync.action_timeout must be positive")
	}
	if c.Sync.LogBufferBytes < MinLogBufferBytes {
		return fmt.Errorf("sync.log_buffer_bytes must be at least %d", MinLogBufferBytes)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json")
	}

	switch c.TUI.Theme {
	case "default", "light":
	default:
		return fmt.Errorf("tui.theme must be default or light")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Global.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Global.DataDir, err)
	}
	return nil
}

// LogFilePath returns the configured log file, or the default under DataDir.
func (c *Config) LogFilePath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.DataDir, DefaultLogFileName)
}

// ViewStatePath returns where the console persists its view preferences.
func (c *Config) ViewStatePath() string {
	return filepath.Join(c.Global.DataDir, "view.yaml")
}
