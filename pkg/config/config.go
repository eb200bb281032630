package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pario-ai/oracle/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all oracle configuration.
type Config struct {
	DefaultModel string `yaml:"default_model"`
	// Timeout is the overall wait for the next outcome when the caller
	// does not give one.
	Timeout time.Duration `yaml:"timeout"`
	// RequestTimeout bounds a single provider exchange. Zero leaves it
	// unbounded.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Concurrency    int           `yaml:"concurrency"`
	// ShutdownDeadline, when set, makes any request whose execution starts
	// after it fail immediately instead of touching the network.
	ShutdownDeadline time.Time          `yaml:"shutdown_deadline"`
	LogLevel         string             `yaml:"log_level"`
	Throttle         map[string]float64 `yaml:"throttle"`
	Endpoints        []models.Endpoint  `yaml:"endpoints"`
	Credentials      CredentialsConfig  `yaml:"credentials"`
	Journal          JournalConfig      `yaml:"journal"`
	Metrics          MetricsConfig      `yaml:"metrics"`
}

// CredentialsConfig controls where endpoint API keys are read from.
type CredentialsConfig struct {
	// KeysDir holds one file per provider name containing its API key.
	// Environment variables <NAME>_API_KEY take precedence.
	KeysDir string `yaml:"keys_dir"`
}

// JournalConfig controls the cache journal client and server.
type JournalConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Sort      string `yaml:"sort"`
	DBPath    string `yaml:"db_path"`
	CacheSize int    `yaml:"cache_size"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DefaultModel:   "deepseek-v3-chat-20241226",
		Timeout:        480 * time.Second,
		RequestTimeout: 10 * time.Minute,
		Concurrency:    64,
		LogLevel:       "info",
		Credentials: CredentialsConfig{
			KeysDir: "~/.oracle/api_keys",
		},
		Journal: JournalConfig{
			Enabled:   true,
			Addr:      "127.0.0.1:9001",
			Sort:      models.SortApproxOracle,
			DBPath:    "journal.db",
			CacheSize: 4096,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the configuration for values the dispatcher cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %v", c.RequestTimeout))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	for id, rate := range c.Throttle {
		if rate < 0 {
			errs = append(errs, fmt.Errorf("throttle[%s]: rate must not be negative", id))
		}
	}
	for i, ep := range c.Endpoints {
		if ep.ID == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d]: id is required", i))
		}
		if ep.Protocol != "" && !ep.Protocol.Valid() {
			errs = append(errs, fmt.Errorf("endpoints[%d]: unknown protocol %q", i, ep.Protocol))
		}
		if ep.Rate < 0 {
			errs = append(errs, fmt.Errorf("endpoints[%d]: rate must not be negative", i))
		}
	}
	if c.Journal.Enabled && c.Journal.Addr == "" {
		errs = append(errs, errors.New("journal.addr is required when the journal is enabled"))
	}
	return errors.Join(errs...)
}
