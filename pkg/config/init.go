package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// sectionComments are written above each top-level section of a generated
// configuration file.
var sectionComments = map[string]string{
	"logging": "Logging configuration\nlevel: DEBUG, INFO, WARN, ERROR\nformat: text, json\noutput: stdout, stderr or a file path",
	"drive": "Drive backend\ntype: graph (OneDrive through Microsoft Graph), memory, s3\n" +
		"root: folder of the drive the filesystem is rooted at\n" +
		"graph: client_id, client_secret, token_url, access_token, refresh_token,\n" +
		"       drive_id | user_id | group_id | site_id, base_url\n" +
		"s3: bucket, region, key_prefix, endpoint, access_key_id, secret_access_key,\n" +
		"    part_size, max_retries",
	"upload": "Upload commit tuning\nthreshold: size in bytes from which resumable upload sessions are used\n" +
		"chunk_size: resumable chunk size, a positive multiple of 327680",
	"tokens": "OAuth token persistence\ntype: memory, badger\nbadger: path, account",
	"throttle": "Request pacing\nrequests_per_second: 0 disables client-side pacing\n" +
		"max_retries: retries of a throttled (429) request\ncopy_poll_interval: delay between copy status polls",
	"metrics": "Prometheus metrics\nenabled: collect drive operation metrics\nlisten: address of the /metrics endpoint",
}

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. An existing file is only replaced
// when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	// The file may hold client secrets and refresh tokens once edited
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a comment block above
// every top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// Encode yields a mapping node with alternating key and value nodes
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
		if key.Value == "throttle" {
			setScalar(value, "copy_poll_interval", cfg.Throttle.CopyPollInterval.String())
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# onedrivefs Configuration File\n")
	buf.WriteString("#\n")
	buf.WriteString("# Every key can be overridden with an ONEDRIVEFS_ environment variable,\n")
	buf.WriteString("# e.g. ONEDRIVEFS_LOGGING_LEVEL=DEBUG\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return buf.String(), nil
}

// setScalar replaces the value of key in the mapping node m with a plain
// string scalar.
func setScalar(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
}
