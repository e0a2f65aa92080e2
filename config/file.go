package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvURL        = "NEWSGRAB_URL"
	EnvOutput     = "NEWSGRAB_OUTPUT"
	EnvHistoryDSN = "NEWSGRAB_HISTORY_DSN"
	EnvLogLevel   = "NEWSGRAB_LOG_LEVEL"
)

// Load reads configuration from the YAML file at path, layered over the
// defaults, and then applies environment overrides. A missing file is not an
// error; a file that exists but cannot be read or parsed is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// loadFile decodes the file at path into cfg. Fields absent from the file
// keep whatever cfg already holds.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil // File doesn't exist -- defaults apply
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnv overrides cfg with any non-empty environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvURL); v != "" {
		cfg.FrontPage.URL = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv(EnvHistoryDSN); v != "" {
		cfg.History.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}
