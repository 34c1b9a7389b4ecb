package traceship

import (
	"fmt"
	"net/url"
	"time"

	"github.com/bft-labs/traceship/internal/app"
	"github.com/bft-labs/traceship/internal/domain"
)

// DefaultBaseURL is the ingestion service used when Config.BaseURL is empty.
const DefaultBaseURL = "https://cloud.langfuse.com"

// DefaultHTTPTimeout bounds a single ingestion request.
const DefaultHTTPTimeout = 30 * time.Second

// Default batching values, re-exported for callers building a Config by hand.
const (
	DefaultMaxEvents         = app.DefaultMaxEvents
	DefaultMaxBytes          = app.DefaultMaxBytes
	DefaultFlushInterval     = app.DefaultFlushInterval
	DefaultMaxRetries        = app.DefaultMaxRetries
	DefaultInitialRetryDelay = app.DefaultInitialRetryDelay
	DefaultMaxRetryDelay     = app.DefaultMaxRetryDelay
	DefaultMaxQueueSize      = app.DefaultMaxQueueSize
)

// Config contains the configuration for a Client.
// Zero values are replaced by defaults in SetDefaults, so a Config with only
// credentials set is usable.
type Config struct {
	// PublicKey and SecretKey authenticate against the ingestion service (required)
	PublicKey string
	SecretKey string

	// BaseURL of the ingestion service. Default: DefaultBaseURL
	BaseURL string

	// HTTPTimeout bounds one request when no custom HTTP client is injected
	HTTPTimeout time.Duration

	// MaxEvents per chunk; reaching it in the queue triggers a flush
	MaxEvents int

	// MaxBytes per chunk; reaching it in the queue triggers a flush.
	// Must not exceed the 5 MB server limit.
	MaxBytes int

	FlushInterval time.Duration

	// MaxRetries is the number of resends after the first attempt
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration

	// DisableRetryJitter turns off the random extra delay between retries
	DisableRetryJitter bool

	// FailFast aborts a flush on the first chunk that fails for good
	FailFast bool

	MaxQueueSize int
	Backpressure BackpressurePolicy
}

// SetDefaults fills zero-valued fields.
// MaxRetries is left alone; use DefaultConfig for three retries.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.MaxEvents == 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.InitialRetryDelay == 0 {
		c.InitialRetryDelay = DefaultInitialRetryDelay
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
}

// DefaultConfig returns a Config with every default applied, including
// MaxRetries. Credentials still need to be set.
func DefaultConfig() Config {
	c := Config{MaxRetries: DefaultMaxRetries}
	c.SetDefaults()
	return c
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.PublicKey == "" || c.SecretKey == "" {
		return fmt.Errorf("%w: public and secret key are required", domain.ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid base url %q", domain.ErrInvalidConfig, c.BaseURL)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http timeout must not be negative", domain.ErrInvalidConfig)
	}
	return c.batcherConfig().Validate()
}

func (c Config) batcherConfig() app.Config {
	return app.Config{
		MaxEvents:         c.MaxEvents,
		MaxBytes:          c.MaxBytes,
		FlushInterval:     c.FlushInterval,
		MaxRetries:        c.MaxRetries,
		InitialRetryDelay: c.InitialRetryDelay,
		MaxRetryDelay:     c.MaxRetryDelay,
		RetryJitter:       !c.DisableRetryJitter,
		FailFast:          c.FailFast,
		MaxQueueSize:      c.MaxQueueSize,
		Backpressure:      c.Backpressure,
		SettleTimeout:     app.SettleTimeout,
	}
}
