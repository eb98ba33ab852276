package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "ONEDRIVEFS"

// Config represents the complete onedrivefs configuration.
//
// This structure captures all configurable aspects of the filesystem:
//   - Logging configuration
//   - Drive backend selection and configuration (backend-specific)
//   - Upload commit tuning
//   - OAuth token persistence
//   - Client-side throttling
//   - Prometheus metrics
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ONEDRIVEFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Backend Configuration Pattern:
// Each drive backend and token store decodes its own options from a
// type-specific map (e.g. drive.graph, drive.s3). Only the section matching
// the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Drive selects the remote drive and its options
	Drive DriveConfig `mapstructure:"drive" yaml:"drive"`

	// Upload tunes how buffered files are committed
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Tokens selects where refreshed OAuth tokens are persisted
	Tokens TokensConfig `mapstructure:"tokens" yaml:"tokens"`

	// Throttle paces requests to the Graph API
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// DriveConfig specifies the drive backend.
//
// The Type field determines which backend is used.
// Only the corresponding type-specific configuration section is used.
type DriveConfig struct {
	// Type specifies which backend to use
	// Valid values: graph, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=graph memory s3"`

	// Root is the directory of the drive the filesystem is rooted at
	Root string `mapstructure:"root" yaml:"root"`

	// Graph contains Microsoft Graph options (client_id, client_secret,
	// refresh_token, drive_id, ...). Only used when Type = "graph"
	Graph map[string]any `mapstructure:"graph" yaml:"graph"`

	// Memory contains in-memory drive options. Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// S3 contains S3 options (bucket, region, endpoint, ...).
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// UploadConfig tunes the commit of buffered files.
type UploadConfig struct {
	// Threshold is the size in bytes from which a resumable upload session is
	// used instead of a single request
	Threshold int64 `mapstructure:"threshold" yaml:"threshold" validate:"gte=0"`

	// ChunkSize is the size of resumable upload chunks. Must be a positive
	// multiple of 327680 (320 KiB)
	ChunkSize int64 `mapstructure:"chunk_size" yaml:"chunk_size" validate:"chunk_size"`
}

// TokensConfig specifies the OAuth token store.
type TokensConfig struct {
	// Type specifies which token store to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB options (path, account).
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// ThrottleConfig paces Graph requests.
type ThrottleConfig struct {
	// RequestsPerSecond is the sustained request rate (0 = unlimited)
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the number of requests allowed above the sustained rate
	Burst uint `mapstructure:"burst" yaml:"burst"`

	// MaxRetries bounds how often a throttled (429) request is retried
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`

	// CopyPollInterval is the delay between copy job status polls
	CopyPollInterval time.Duration `mapstructure:"copy_poll_interval" yaml:"copy_poll_interval" validate:"gt=0"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on collection of drive operation metrics
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address of the /metrics HTTP endpoint
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required_if=Enabled true"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ONEDRIVEFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithViper(viper.New(), configPath)
}

// LoadWithViper loads configuration through v, so callers can bind CLI flags
// to configuration keys before loading.
func LoadWithViper(v *viper.Viper, configPath string) (*Config, error) {
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: ONEDRIVEFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/onedrivefs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar keys that may be set from the environment without
// appearing in the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"drive.type",
	"drive.root",
	"upload.threshold",
	"upload.chunk_size",
	"tokens.type",
	"throttle.requests_per_second",
	"throttle.burst",
	"throttle.max_retries",
	"throttle.copy_poll_interval",
	"metrics.enabled",
	"metrics.listen",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist is not an error either
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "onedrivefs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "onedrivefs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
