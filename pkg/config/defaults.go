package config

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/onedrivefs/pkg/drive/graph"
	"github.com/marmos91/onedrivefs/pkg/onedrivefs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDriveDefaults(&cfg.Drive)
	applyUploadDefaults(&cfg.Upload)
	applyTokensDefaults(&cfg.Tokens)
	applyThrottleDefaults(&cfg.Throttle)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyDriveDefaults sets drive defaults.
func applyDriveDefaults(cfg *DriveConfig) {
	if cfg.Type == "" {
		cfg.Type = "graph"
	}
	if cfg.Root == "" {
		cfg.Root = "/"
	}

	if cfg.Graph == nil {
		cfg.Graph = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	// Apply defaults for all backends (for config file generation)
	if _, ok := cfg.Graph["base_url"]; !ok {
		cfg.Graph["base_url"] = graph.DefaultBaseURL
	}
	if _, ok := cfg.Graph["token_url"]; !ok {
		cfg.Graph["token_url"] = graph.DefaultTokenURL
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
}

// applyUploadDefaults sets commit defaults.
func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.Threshold == 0 {
		cfg.Threshold = onedrivefs.DefaultUploadThreshold
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = onedrivefs.DefaultChunkSize
	}
}

// applyTokensDefaults sets token store defaults.
func applyTokensDefaults(cfg *TokensConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["path"]; !ok {
		cfg.Badger["path"] = filepath.Join(getConfigDir(), "tokens")
	}
}

// applyThrottleDefaults sets throttling defaults.
func applyThrottleDefaults(cfg *ThrottleConfig) {
	// RequestsPerSecond defaults to 0 (unlimited); the service's 429
	// answers still pause the client
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = graph.DefaultMaxThrottleRetries
	}
	if cfg.CopyPollInterval == 0 {
		cfg.CopyPollInterval = graph.DefaultCopyPollInterval
	}
}

// applyMetricsDefaults sets metrics defaults. Metrics stay disabled unless
// explicitly enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
