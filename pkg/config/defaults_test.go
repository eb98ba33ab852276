package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default log output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalized(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_Drive(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Drive.Type != "graph" {
		t.Errorf("Expected default drive type 'graph', got %q", cfg.Drive.Type)
	}
	if cfg.Drive.Root != "/" {
		t.Errorf("Expected default root '/', got %q", cfg.Drive.Root)
	}
	if cfg.Drive.Memory == nil {
		t.Fatal("Expected Memory map to be initialized")
	}
	if cfg.Drive.Graph["base_url"] != "https://graph.microsoft.com/v1.0" {
		t.Errorf("Unexpected default base_url %v", cfg.Drive.Graph["base_url"])
	}
	if cfg.Drive.S3["region"] != "us-east-1" {
		t.Errorf("Expected default S3 region 'us-east-1', got %v", cfg.Drive.S3["region"])
	}
}

func TestApplyDefaults_Upload(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Upload.Threshold != 4_000_000 {
		t.Errorf("Expected default threshold 4000000, got %d", cfg.Upload.Threshold)
	}
	if cfg.Upload.ChunkSize != 327680 {
		t.Errorf("Expected default chunk size 327680, got %d", cfg.Upload.ChunkSize)
	}
}

func TestApplyDefaults_Tokens(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Tokens.Type != "memory" {
		t.Errorf("Expected default token store 'memory', got %q", cfg.Tokens.Type)
	}
	want := filepath.Join(GetConfigDir(), "tokens")
	if cfg.Tokens.Badger["path"] != want {
		t.Errorf("Expected default badger path %q, got %v", want, cfg.Tokens.Badger["path"])
	}
}

func TestApplyDefaults_Throttle(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Throttle.RequestsPerSecond != 0 {
		t.Errorf("Expected unlimited rate by default, got %d", cfg.Throttle.RequestsPerSecond)
	}
	if cfg.Throttle.MaxRetries != 5 {
		t.Errorf("Expected default max_retries 5, got %d", cfg.Throttle.MaxRetries)
	}
	if cfg.Throttle.CopyPollInterval != time.Second {
		t.Errorf("Expected default copy_poll_interval 1s, got %v", cfg.Throttle.CopyPollInterval)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "WARN", Format: "json", Output: "/tmp/odfs.log"},
		Drive: DriveConfig{
			Type: "s3",
			Root: "/data",
			S3:   map[string]any{"region": "eu-west-1", "bucket": "b"},
		},
		Upload:   UploadConfig{Threshold: 100, ChunkSize: 655360},
		Throttle: ThrottleConfig{MaxRetries: 2, CopyPollInterval: 5 * time.Second},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Output != "/tmp/odfs.log" {
		t.Errorf("Expected output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Drive.Type != "s3" || cfg.Drive.Root != "/data" {
		t.Errorf("Expected drive preserved, got %q at %q", cfg.Drive.Type, cfg.Drive.Root)
	}
	if cfg.Drive.S3["region"] != "eu-west-1" {
		t.Errorf("Expected region preserved, got %v", cfg.Drive.S3["region"])
	}
	if cfg.Upload.Threshold != 100 || cfg.Upload.ChunkSize != 655360 {
		t.Errorf("Expected upload preserved, got %+v", cfg.Upload)
	}
	if cfg.Throttle.MaxRetries != 2 || cfg.Throttle.CopyPollInterval != 5*time.Second {
		t.Errorf("Expected throttle preserved, got %+v", cfg.Throttle)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Listen != ":9090" {
		t.Errorf("Expected default listen ':9090', got %q", cfg.Metrics.Listen)
	}
}
