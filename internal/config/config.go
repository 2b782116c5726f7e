package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transfer modes accepted by Config.Mode.
const (
	ModeAuto        = "auto"
	ModeHTTP        = "http"
	ModeAccelerated = "accelerated"
)

// Config defines configuration for the ena-dl CLI.
type Config struct {
	OutputDir string       `yaml:"output_dir"`
	Mode      string       `yaml:"mode"`
	Workers   int          `yaml:"workers"`
	Quiet     bool         `yaml:"quiet"`
	DryRun    bool         `yaml:"dry_run"`
	GroupBy   string       `yaml:"group_by"`
	Bucket    string       `yaml:"bucket"`
	Retry     RetryConfig  `yaml:"retry"`
	Aspera    AsperaConfig `yaml:"aspera"`
}

// RetryConfig defines retry behavior per transfer task.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// AsperaConfig locates the external accelerated-transfer client.
type AsperaConfig struct {
	Binary    string `yaml:"binary"`
	KeyPath   string `yaml:"key_path"`
	Port      int    `yaml:"port"`
	RateLimit string `yaml:"rate_limit"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		OutputDir: ".",
		Mode:      ModeAuto,
		Workers:   4,
		Retry: RetryConfig{
			Attempts:   10,
			Backoff:    10 * time.Second,
			MaxBackoff: 2 * time.Minute,
		},
		Aspera: AsperaConfig{
			Binary:    "ascp",
			Port:      33001,
			RateLimit: "300m",
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	OutputDir string          `yaml:"output_dir"`
	Mode      string          `yaml:"mode"`
	Workers   int             `yaml:"workers"`
	Quiet     bool            `yaml:"quiet"`
	DryRun    bool            `yaml:"dry_run"`
	GroupBy   string          `yaml:"group_by"`
	Bucket    string          `yaml:"bucket"`
	Retry     yamlRetryConfig `yaml:"retry"`
	Aspera    AsperaConfig    `yaml:"aspera"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.OutputDir != "" {
		cfg.OutputDir = yc.OutputDir
	}
	if yc.Mode != "" {
		cfg.Mode = yc.Mode
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	cfg.Quiet = yc.Quiet
	cfg.DryRun = yc.DryRun
	if yc.GroupBy != "" {
		cfg.GroupBy = yc.GroupBy
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if yc.Aspera.Binary != "" {
		cfg.Aspera.Binary = yc.Aspera.Binary
	}
	if yc.Aspera.KeyPath != "" {
		cfg.Aspera.KeyPath = yc.Aspera.KeyPath
	}
	if yc.Aspera.Port != 0 {
		cfg.Aspera.Port = yc.Aspera.Port
	}
	if yc.Aspera.RateLimit != "" {
		cfg.Aspera.RateLimit = yc.Aspera.RateLimit
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ENADL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ENADL_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("ENADL_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("ENADL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ENADL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("ENADL_QUIET"); v != "" {
		c.Quiet = v == "true" || v == "1"
	}
	if v := os.Getenv("ENADL_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("ENADL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ENADL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("ENADL_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ENADL_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("ENADL_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ENADL_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	if v := os.Getenv("ENADL_ASCP_BINARY"); v != "" {
		c.Aspera.Binary = v
	}
	if v := os.Getenv("ENADL_ASCP_KEY"); v != "" {
		c.Aspera.KeyPath = v
	}
	if v := os.Getenv("ENADL_ASCP_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ENADL_ASCP_PORT: %w", err)
		}
		c.Aspera.Port = n
	}
	if v := os.Getenv("ENADL_ASCP_RATE"); v != "" {
		c.Aspera.RateLimit = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	switch c.Mode {
	case ModeAuto, ModeHTTP, ModeAccelerated:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	switch c.GroupBy {
	case "", "experiment", "sample":
	default:
		return fmt.Errorf("config: unknown group_by %q", c.GroupBy)
	}
	if c.Mode == ModeAccelerated && c.Aspera.KeyPath == "" {
		return errors.New("config: aspera.key_path is required for accelerated mode")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.OutputDir != "" {
		c.OutputDir = override.OutputDir
	}
	if override.Mode != "" {
		c.Mode = override.Mode
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Quiet {
		c.Quiet = override.Quiet
	}
	if override.DryRun {
		c.DryRun = override.DryRun
	}
	if override.GroupBy != "" {
		c.GroupBy = override.GroupBy
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.Aspera.Binary != "" {
		c.Aspera.Binary = override.Aspera.Binary
	}
	if override.Aspera.KeyPath != "" {
		c.Aspera.KeyPath = override.Aspera.KeyPath
	}
	if override.Aspera.Port != 0 {
		c.Aspera.Port = override.Aspera.Port
	}
	if override.Aspera.RateLimit != "" {
		c.Aspera.RateLimit = override.Aspera.RateLimit
	}
	return c
}
