// Package config provides configuration management for deagent.
// It defines the structure for YAML configuration files and handles
// loading, validation, and default value application.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deagent-io/deagent/pkg/session"
)

// Config is the top-level configuration structure for deagent.
// It defines the backend connection, access gating, session defaults,
// logging, and the optional metrics server.
type Config struct {
	// Version is the configuration file format version
	Version string `yaml:"version"`
	// Backend defines the agent backend connection
	Backend BackendConfig `yaml:"backend"`
	// Access defines the local access gate
	Access AccessConfig `yaml:"access"`
	// Session defines defaults for new conversations
	Session SessionConfig `yaml:"session"`
	// Logging defines logging behavior
	Logging LoggingConfig `yaml:"logging"`
	// Metrics defines the optional Prometheus metrics server
	Metrics MetricsConfig `yaml:"metrics"`
	// RateLimit defines client-side request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// BackendConfig defines how to reach the multi-agent backend.
type BackendConfig struct {
	// Endpoint is the URL of the backend chat endpoint
	Endpoint string `yaml:"endpoint"`
	// APIKey is the bearer token sent with every request
	APIKey string `yaml:"api_key"`
	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`
}

// AccessConfig defines the local access gate shown before the chat opens.
type AccessConfig struct {
	// Key is the shared access key; empty disables the gate
	Key string `yaml:"key"`
}

// SessionConfig defines defaults applied to new conversations.
type SessionConfig struct {
	// Topic is the initial focus topic ID
	Topic string `yaml:"topic"`
	// CustomInstructions is the initial free-form guidance for the custom topic
	CustomInstructions string `yaml:"custom_instructions"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `yaml:"level"`
	// TranscriptDir is the directory where chat transcripts are stored
	TranscriptDir string `yaml:"transcript_dir"`
	// TranscriptFormat is either "text" or "json"
	TranscriptFormat string `yaml:"transcript_format"`
	// Transcripts determines if chat transcripts are written. A pointer so
	// that an omitted key keeps the default (on) while an explicit false
	// turns transcripts off.
	Transcripts *bool `yaml:"transcripts"`
}

// TranscriptsEnabled reports whether transcripts should be written.
// An unset value counts as enabled.
func (l LoggingConfig) TranscriptsEnabled() bool {
	return l.Transcripts == nil || *l.Transcripts
}

// MetricsConfig defines the optional Prometheus metrics server.
type MetricsConfig struct {
	// Enabled determines if the metrics server is started (disabled by default)
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address (default: ":9090")
	Addr string `yaml:"addr"`
}

// RateLimitConfig defines client-side pacing for backend requests.
type RateLimitConfig struct {
	// Enabled determines if pacing is applied (disabled by default)
	Enabled bool `yaml:"enabled"`
	// RequestsPerSecond is the sustained request rate
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the number of requests allowed to exceed the rate briefly
	Burst int `yaml:"burst"`
}

// NewDefaultConfig creates a configuration with sensible defaults.
// The default transcript directory is ~/.deagent/chats.
func NewDefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Backend: BackendConfig{
			Timeout: 180 * time.Second,
		},
		Session: SessionConfig{
			Topic: session.DefaultTopicID,
		},
		Logging: LoggingConfig{
			Level:            "info",
			TranscriptDir:    defaultTranscriptDir(),
			TranscriptFormat: "text",
			Transcripts:      boolPtr(true),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 1,
			Burst:             3,
		},
	}
}

// LoadConfig loads and validates a configuration from a YAML file.
// It applies default values for any missing optional fields.
// Returns an error if the file cannot be read, parsed, or is invalid.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads the configuration from path, falling back to the
// defaults (plus environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := NewDefaultConfig()
		config.applyDefaults()
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return config, nil
	}
	return LoadConfig(path)
}

// SaveConfig writes the configuration to a YAML file.
// The file is created with 0600 permissions because it may carry keys.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors. The endpoint may be empty
// (the client then fails fast per request), but when set it must be a valid
// absolute URL.
func (c *Config) Validate() error {
	if c.Backend.Endpoint != "" {
		u, err := url.Parse(c.Backend.Endpoint)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("backend.endpoint is not a valid URL: %s", c.Backend.Endpoint)
		}
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout cannot be negative")
	}

	if c.Session.Topic != "" {
		if _, ok := session.TopicByID(c.Session.Topic); !ok {
			return fmt.Errorf("unknown session.topic: %s", c.Session.Topic)
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Logging.TranscriptFormat != "" &&
		c.Logging.TranscriptFormat != "text" && c.Logging.TranscriptFormat != "json" {
		return fmt.Errorf("invalid logging.transcript_format: %s", c.Logging.TranscriptFormat)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit.burst must be positive")
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 180 * time.Second
	}
	if c.Backend.APIKey == "" {
		if env := os.Getenv("DEAGENT_API_KEY"); env != "" {
			c.Backend.APIKey = env
		}
	}
	if c.Backend.Endpoint == "" {
		if env := os.Getenv("DEAGENT_ENDPOINT"); env != "" {
			c.Backend.Endpoint = env
		}
	}
	if c.Access.Key == "" {
		if env := os.Getenv("DEAGENT_ACCESS_KEY"); env != "" {
			c.Access.Key = env
		}
	}

	if c.Session.Topic == "" {
		c.Session.Topic = session.DefaultTopicID
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.TranscriptDir == "" {
		c.Logging.TranscriptDir = defaultTranscriptDir()
	}
	if c.Logging.TranscriptFormat == "" {
		c.Logging.TranscriptFormat = "text"
	}
	if c.Logging.Transcripts == nil {
		c.Logging.Transcripts = boolPtr(true)
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}

	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 1
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 3
	}
}

func boolPtr(v bool) *bool { return &v }

func defaultTranscriptDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return fmt.Sprintf("%s/.deagent/chats", homeDir)
}
