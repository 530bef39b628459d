package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadFromFile loads configuration from a specific file, falling back to
// defaults for anything the file does not set.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from the default file location (if present),
// environment variables, and defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, DefaultDataDir, ConfigFileName)
	if _, statErr := os.Stat(defaultPath); statErr == nil {
		if err := loadConfigFile(defaultPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", defaultPath, err)
		}
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// finalize applies env overrides, fills the data dir, and validates.
func finalize(cfg *Config) error {
	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, DefaultDataDir)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("POSTFLOW_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("POSTFLOW_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("POSTFLOW_GATEWAY_URL")); v != "" {
		if cfg.Gateway == nil {
			cfg.Gateway = DefaultConfig().Gateway
		}
		cfg.Gateway.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("POSTFLOW_FRONTEND_URL")); v != "" {
		cfg.FrontendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("POSTFLOW_LOG_LEVEL")); v != "" {
		if cfg.Logging == nil {
			cfg.Logging = DefaultConfig().Logging
		}
		cfg.Logging.Level = v
	}
}
