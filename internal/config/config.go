package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/logging"
)

// Config holds all hostbridge configuration
type Config struct {
	Endpoint api.Endpoint  `mapstructure:"endpoint" yaml:"endpoint"`
	Bridge   BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Events   EventsConfig  `mapstructure:"events" yaml:"events"`
}

// BridgeConfig controls the bridge's dependency graph
type BridgeConfig struct {
	// TokenRefreshSeconds is how often the workspace token is refreshed (default: 300)
	TokenRefreshSeconds int `mapstructure:"token_refresh_seconds" yaml:"token_refresh_seconds"`
	// StartTimeoutSeconds bounds how long Start may take; 0 disables the bound (default: 30)
	StartTimeoutSeconds int `mapstructure:"start_timeout_seconds" yaml:"start_timeout_seconds"`
	// MaxInFlight caps concurrent calls to the remote; 0 means unlimited (default: 0)
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`
}

// TokenRefresh returns the token refresh interval as a duration
func (c BridgeConfig) TokenRefresh() time.Duration {
	return time.Duration(c.TokenRefreshSeconds) * time.Second
}

// StartTimeout returns the start timeout as a duration
func (c BridgeConfig) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled controls whether logs are written at all (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where bridge.log is written. Empty means <config dir>/logs.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// ResolveDir returns the log directory, falling back to <config dir>/logs
func (c LoggingConfig) ResolveDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// Rotation returns the rotation settings for logging.NewLoggerWithRotation
func (c LoggingConfig) Rotation() logging.RotationConfig {
	return logging.RotationConfig{
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Compress:   c.Compress,
	}
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves /metrics while a host runs (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Addr is the listen address (default: "127.0.0.1:9464")
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// EventsConfig controls which bus events hosts log
type EventsConfig struct {
	// LogPatterns are glob patterns over event types, e.g. "auth.*"
	LogPatterns []string `mapstructure:"log_patterns" yaml:"log_patterns"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			TokenRefreshSeconds: 300,
			StartTimeoutSeconds: 30,
			MaxInFlight:         0,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Events: EventsConfig{
			LogPatterns: []string{"graph.*", "auth.*"},
		},
	}
}

// EnvPrefix prefixes environment overrides, e.g. HOSTBRIDGE_ENDPOINT_URL
// for endpoint.url.
const EnvPrefix = "HOSTBRIDGE"

// SetDefaults registers default values with the global viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	// Endpoint defaults
	v.SetDefault("endpoint.url", defaults.Endpoint.URL)
	v.SetDefault("endpoint.workspace", defaults.Endpoint.Workspace)
	v.SetDefault("endpoint.api_key", defaults.Endpoint.APIKey)

	// Bridge defaults
	v.SetDefault("bridge.token_refresh_seconds", defaults.Bridge.TokenRefreshSeconds)
	v.SetDefault("bridge.start_timeout_seconds", defaults.Bridge.StartTimeoutSeconds)
	v.SetDefault("bridge.max_in_flight", defaults.Bridge.MaxInFlight)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	// Events defaults
	v.SetDefault("events.log_patterns", defaults.Events.LogPatterns)
}

// BindEnv enables HOSTBRIDGE_* environment overrides on v
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	// Replace dots with underscores for nested keys in env vars
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load for a specific viper instance. The config watcher uses it
// to re-read the file without touching global state.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hostbridge")
	}
	// Fall back to ~/.config/hostbridge
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hostbridge"
	}
	return filepath.Join(home, ".config", "hostbridge")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
