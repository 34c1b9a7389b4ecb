package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/traceship/pkg/traceship"
)

// StdinInput selects standard input as the event source.
const StdinInput = "-"

// Config holds CLI configuration for traceship.
type Config struct {
	PublicKey string
	SecretKey string
	BaseURL   string

	HTTPTimeout time.Duration

	// Input is an NDJSON file path or StdinInput
	Input  string
	Follow bool

	MaxEvents     int
	MaxBytes      int
	FlushInterval time.Duration

	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	NoJitter          bool
	FailFast          bool

	MaxQueueSize int
	Backpressure string

	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	lib := traceship.DefaultConfig()
	return Config{
		BaseURL:           lib.BaseURL,
		HTTPTimeout:       lib.HTTPTimeout,
		Input:             StdinInput,
		MaxEvents:         lib.MaxEvents,
		MaxBytes:          lib.MaxBytes,
		FlushInterval:     lib.FlushInterval,
		MaxRetries:        lib.MaxRetries,
		InitialRetryDelay: lib.InitialRetryDelay,
		MaxRetryDelay:     lib.MaxRetryDelay,
		MaxQueueSize:      lib.MaxQueueSize,
		Backpressure:      lib.Backpressure.String(),
		LogLevel:          "info",
	}
}

// Validate checks the configuration for errors and normalizes it.
func (c *Config) Validate() error {
	if c.PublicKey == "" || c.SecretKey == "" {
		return fmt.Errorf("public-key and secret-key are required")
	}
	if c.BaseURL == "" {
		c.BaseURL = traceship.DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Input == "" {
		c.Input = StdinInput
	}
	if c.Follow && c.Input == StdinInput {
		return fmt.Errorf("follow needs a file input")
	}
	if _, err := traceship.ParseBackpressurePolicy(c.Backpressure); err != nil {
		return err
	}
	return c.Library().Validate()
}

// Library converts the CLI configuration into the client configuration.
// The backpressure policy must already be valid.
func (c Config) Library() traceship.Config {
	policy, _ := traceship.ParseBackpressurePolicy(c.Backpressure)
	return traceship.Config{
		PublicKey:          c.PublicKey,
		SecretKey:          c.SecretKey,
		BaseURL:            c.BaseURL,
		HTTPTimeout:        c.HTTPTimeout,
		MaxEvents:          c.MaxEvents,
		MaxBytes:           c.MaxBytes,
		FlushInterval:      c.FlushInterval,
		MaxRetries:         c.MaxRetries,
		InitialRetryDelay:  c.InitialRetryDelay,
		MaxRetryDelay:      c.MaxRetryDelay,
		DisableRetryJitter: c.NoJitter,
		FailFast:           c.FailFast,
		MaxQueueSize:       c.MaxQueueSize,
		Backpressure:       policy,
	}
}

// Masked returns a copy safe for logging.
func (c Config) Masked() Config {
	if c.SecretKey != "" {
		c.SecretKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int from a pointer, so an explicit zero is kept.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setCountFromString is setIntFromString for values where zero is meaningful.
func (s *configSetter) setCountFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("parse %s: must not be negative", flag)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
