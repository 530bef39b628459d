// Package config defines the postflow configuration model and loading rules.
package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultDataDir is the directory under the user home holding state.
	DefaultDataDir = ".postflow"

	// ConfigFileName is the default configuration file name.
	ConfigFileName = "postflow.json"

	// DefaultPendingAuthTTL is how long a pending authorization stays valid.
	DefaultPendingAuthTTL = 600 * time.Second
)

// Config is the top-level postflow configuration.
type Config struct {
	Listen      string `json:"listen" mapstructure:"listen"`
	DataDir     string `json:"data_dir" mapstructure:"data_dir"`
	FrontendURL string `json:"frontend_url" mapstructure:"frontend_url"`

	// PendingAuthTTLSeconds bounds the lifetime of a pending authorization.
	PendingAuthTTLSeconds int `json:"pending_auth_ttl_seconds" mapstructure:"pending_auth_ttl_seconds"`

	// SweepIntervalSeconds is how often expired pending rows are evicted.
	SweepIntervalSeconds int `json:"sweep_interval_seconds" mapstructure:"sweep_interval_seconds"`

	Gateway *GatewayConfig `json:"gateway" mapstructure:"gateway"`
	Logging *LogConfig     `json:"logging" mapstructure:"logging"`
	Tracing *TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// GatewayConfig configures the tool-execution gateway client.
type GatewayConfig struct {
	URL string `json:"url" mapstructure:"url"`

	// TimeoutSeconds bounds a single tool invocation end to end.
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// MaxAttempts is the total number of tries for transport-level failures.
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`

	// BackoffBaseSeconds and BackoffMaxSeconds shape the retry schedule.
	BackoffBaseSeconds int `json:"backoff_base_seconds" mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds  int `json:"backoff_max_seconds" mapstructure:"backoff_max_seconds"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable_file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable_console"`
	Filename      string `json:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir" mapstructure:"log_dir"`
	MaxSize       int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAge        int    `json:"max_age" mapstructure:"max_age"` // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json_format"`
}

// TracingConfig holds configuration for OpenTelemetry tracing
type TracingConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName    string  `json:"service_name" mapstructure:"service_name"`
	ServiceVersion string  `json:"service_version" mapstructure:"service_version"`
	OTLPEndpoint   string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate" mapstructure:"sample_rate"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:                "127.0.0.1:8787",
		FrontendURL:           "http://localhost:3000/connections",
		PendingAuthTTLSeconds: int(DefaultPendingAuthTTL / time.Second),
		SweepIntervalSeconds:  60,
		Gateway: &GatewayConfig{
			URL:                "http://127.0.0.1:9100/rpc",
			TimeoutSeconds:     30,
			MaxAttempts:        3,
			BackoffBaseSeconds: 2,
			BackoffMaxSeconds:  10,
		},
		Logging: &LogConfig{
			Level:         "info",
			EnableFile:    false,
			EnableConsole: true,
			Filename:      "main.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
			JSONFormat:    false,
		},
		Tracing: &TracingConfig{
			Enabled:        false,
			ServiceName:    "postflow",
			ServiceVersion: "dev",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
		},
	}
}

// PendingAuthTTL returns the configured pending-authorization lifetime.
func (c *Config) PendingAuthTTL() time.Duration {
	if c.PendingAuthTTLSeconds <= 0 {
		return DefaultPendingAuthTTL
	}
	return time.Duration(c.PendingAuthTTLSeconds) * time.Second
}

// SweepInterval returns how often the expiry sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Timeout returns the per-invocation deadline for gateway calls.
func (g *GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// BackoffBase returns the base delay for gateway retries.
func (g *GatewayConfig) BackoffBase() time.Duration {
	if g.BackoffBaseSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(g.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the cap on gateway retry delays.
func (g *GatewayConfig) BackoffMax() time.Duration {
	if g.BackoffMaxSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.BackoffMaxSeconds) * time.Second
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.Gateway == nil || c.Gateway.URL == "" {
		return fmt.Errorf("gateway URL must be configured")
	}
	if _, err := url.Parse(c.Gateway.URL); err != nil {
		return fmt.Errorf("invalid gateway URL %q: %w", c.Gateway.URL, err)
	}
	if c.FrontendURL == "" {
		return fmt.Errorf("frontend URL must be configured")
	}
	if _, err := url.Parse(c.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend URL %q: %w", c.FrontendURL, err)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway max_attempts must be at least 1, got %d", c.Gateway.MaxAttempts)
	}
	if c.PendingAuthTTLSeconds < 0 {
		return fmt.Errorf("pending_auth_ttl_seconds cannot be negative")
	}
	return nil
}
