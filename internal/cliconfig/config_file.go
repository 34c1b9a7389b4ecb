package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	PublicKey         string `toml:"public_key"`
	SecretKey         string `toml:"secret_key"`
	BaseURL           string `toml:"base_url"`
	HTTPTimeout       string `toml:"http_timeout"`
	Input             string `toml:"input"`
	Follow            *bool  `toml:"follow"`
	MaxEvents         int    `toml:"max_events"`
	MaxBytes          int    `toml:"max_bytes"`
	FlushInterval     string `toml:"flush_interval"`
	MaxRetries        *int   `toml:"max_retries"`
	InitialRetryDelay string `toml:"initial_retry_delay"`
	MaxRetryDelay     string `toml:"max_retry_delay"`
	NoJitter          *bool  `toml:"no_jitter"`
	FailFast          *bool  `toml:"fail_fast"`
	MaxQueueSize      int    `toml:"max_queue_size"`
	Backpressure      string `toml:"backpressure"`
	MetricsAddr       string `toml:"metrics_addr"`
	LogLevel          string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.traceship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".traceship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("public-key", fc.PublicKey, &cfg.PublicKey)
	s.setString("secret-key", fc.SecretKey, &cfg.SecretKey)
	s.setString("base-url", fc.BaseURL, &cfg.BaseURL)
	s.setString("input", fc.Input, &cfg.Input)
	s.setString("backpressure", fc.Backpressure, &cfg.Backpressure)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("initial-retry-delay", fc.InitialRetryDelay, &cfg.InitialRetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-delay", fc.MaxRetryDelay, &cfg.MaxRetryDelay); err != nil {
		return err
	}

	s.setInt("max-events", fc.MaxEvents, &cfg.MaxEvents)
	s.setInt("max-bytes", fc.MaxBytes, &cfg.MaxBytes)
	s.setInt("max-queue-size", fc.MaxQueueSize, &cfg.MaxQueueSize)
	s.setIntPtr("max-retries", fc.MaxRetries, &cfg.MaxRetries)

	s.setBool("follow", fc.Follow, &cfg.Follow)
	s.setBool("no-jitter", fc.NoJitter, &cfg.NoJitter)
	s.setBool("fail-fast", fc.FailFast, &cfg.FailFast)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
