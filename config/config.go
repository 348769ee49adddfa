// Package config loads settings for the command line tool and the examples
// and builds transports and clients from them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	claude "github.com/haowjy/meridian-claude-go"
	"github.com/haowjy/meridian-claude-go/batch"
)

// Transport names.
const (
	TransportHTTP  = "http"
	TransportSDK   = "sdk"
	TransportLorem = "lorem"
)

// Environment variables that override the file.
const (
	EnvAPIKey    = "ANTHROPIC_API_KEY"
	EnvBaseURL   = "ANTHROPIC_BASE_URL"
	EnvModel     = "CLAUDE_MODEL"
	EnvTransport = "CLAUDE_TRANSPORT"
	EnvLogLevel  = "CLAUDE_LOG_LEVEL"
)

type Config struct {
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	APIVersion string        `yaml:"api_version,omitempty"`
	Beta       []string      `yaml:"beta,omitempty"`
	Transport  string        `yaml:"transport"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // sdk transport only

	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	Batch BatchConfig `yaml:"batch"`
	Log   LogConfig   `yaml:"log"`
}

type BatchConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	PollsToEnd      int           `yaml:"lorem_polls_to_end"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Transport:  TransportHTTP,
		Timeout:    10 * time.Minute,
		MaxRetries: 2,
		Model:      "claude-haiku-4-5",
		MaxTokens:  claude.DefaultMaxTokens,
		Batch: BatchConfig{
			InitialInterval: batch.DefaultInitialInterval,
			MaxInterval:     batch.DefaultMaxInterval,
			MaxBatchSize:    claude.GetCapabilityRegistry().Constraints().MaxBatchRequests,
			PollsToEnd:      3,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := getenv(EnvModel); v != "" {
		c.Model = v
	}
	if v := getenv(EnvTransport); v != "" {
		c.Transport = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, reason string) {
		errs = append(errs, &claude.ValidationError{Field: field, Value: value, Reason: reason})
	}

	switch c.Transport {
	case TransportHTTP, TransportSDK:
		if c.APIKey == "" {
			invalid("api_key", "", fmt.Sprintf("required for the %s transport (set %s)", c.Transport, EnvAPIKey))
		}
	case TransportLorem:
	default:
		invalid("transport", c.Transport, "must be 'http', 'sdk' or 'lorem'")
	}

	if c.Model == "" {
		invalid("model", c.Model, "is required")
	}
	if c.MaxTokens < 1 {
		invalid("max_tokens", c.MaxTokens, "must be positive")
	}
	if c.Timeout < 0 {
		invalid("timeout", c.Timeout, "must not be negative")
	}
	if c.MaxRetries < 0 {
		invalid("max_retries", c.MaxRetries, "must not be negative")
	}

	if c.Batch.InitialInterval <= 0 {
		invalid("batch.initial_interval", c.Batch.InitialInterval, "must be positive")
	}
	if c.Batch.MaxInterval < c.Batch.InitialInterval {
		invalid("batch.max_interval", c.Batch.MaxInterval, "must not be below initial_interval")
	}
	limit := claude.GetCapabilityRegistry().Constraints().MaxBatchRequests
	if c.Batch.MaxBatchSize < 1 || (limit > 0 && c.Batch.MaxBatchSize > limit) {
		invalid("batch.max_batch_size", c.Batch.MaxBatchSize, fmt.Sprintf("must be between 1 and %d", limit))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		invalid("log.level", c.Log.Level, err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		invalid("log.format", c.Log.Format, "must be 'text' or 'json'")
	}

	return errors.Join(errs...)
}

// Backoff is the poll schedule described by the batch settings.
func (c *Config) Backoff() batch.Backoff {
	return batch.Backoff{Initial: c.Batch.InitialInterval, Max: c.Batch.MaxInterval}
}
