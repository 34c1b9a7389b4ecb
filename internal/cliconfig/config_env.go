package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "TRACESHIP_"

// ApplyEnvConfig applies TRACESHIP_* environment variables to cfg.
// Values override the config file but never an explicitly set flag.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("public-key", env("PUBLIC_KEY"), &cfg.PublicKey)
	s.setString("secret-key", env("SECRET_KEY"), &cfg.SecretKey)
	s.setString("base-url", env("BASE_URL"), &cfg.BaseURL)
	s.setString("input", env("INPUT"), &cfg.Input)
	s.setString("backpressure", env("BACKPRESSURE"), &cfg.Backpressure)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", env("FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("initial-retry-delay", env("INITIAL_RETRY_DELAY"), &cfg.InitialRetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-retry-delay", env("MAX_RETRY_DELAY"), &cfg.MaxRetryDelay); err != nil {
		return err
	}

	if err := s.setIntFromString("max-events", env("MAX_EVENTS"), &cfg.MaxEvents); err != nil {
		return err
	}
	if err := s.setIntFromString("max-bytes", env("MAX_BYTES"), &cfg.MaxBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-queue-size", env("MAX_QUEUE_SIZE"), &cfg.MaxQueueSize); err != nil {
		return err
	}
	if err := s.setCountFromString("max-retries", env("MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}

	s.setBoolFromString("follow", env("FOLLOW"), &cfg.Follow)
	s.setBoolFromString("no-jitter", env("NO_JITTER"), &cfg.NoJitter)
	s.setBoolFromString("fail-fast", env("FAIL_FAST"), &cfg.FailFast)

	return nil
}
