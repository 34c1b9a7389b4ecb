// Package traceship provides a batching client for shipping tracing and
// telemetry events to an ingestion service.
//
// Example usage:
//
//	cfg := traceship.DefaultConfig()
//	cfg.PublicKey = "pk-..."
//	cfg.SecretKey = "sk-..."
//	client, err := traceship.New(cfg, traceship.WithLogger(traceship.ConsoleLogger(os.Stderr, "info")))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
// See package github.com/bft-labs/traceship/pkg/traceship for the full API.
package traceship

import (
	"encoding/json"
	"io"

	"github.com/bft-labs/traceship/pkg/log"
	"github.com/bft-labs/traceship/pkg/traceship"
)

// Config holds the configuration of a Client.
type Config = traceship.Config

// Client batches events and ships them to the ingestion service.
type Client = traceship.Client

// Option configures a Client.
type Option = traceship.Option

// IngestionEvent is the stock event envelope.
type IngestionEvent = traceship.IngestionEvent

// DefaultBaseURL is the ingestion service used when none is configured.
const DefaultBaseURL = traceship.DefaultBaseURL

// New creates a running Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	return traceship.New(cfg, opts...)
}

// DefaultConfig returns a Config with sensible default values.
// PublicKey and SecretKey must be set before calling New.
func DefaultConfig() Config {
	return traceship.DefaultConfig()
}

// NewIngestionEvent creates an event stamped with the current time.
func NewIngestionEvent(id, eventType string, body json.RawMessage) *IngestionEvent {
	return traceship.NewIngestionEvent(id, eventType, body)
}

// WithLogger sets the logger of a Client.
func WithLogger(logger log.Logger) Option {
	return traceship.WithLogger(logger)
}

// ConsoleLogger returns a human-readable zerolog logger writing to w.
// Unknown levels fall back to info.
func ConsoleLogger(w io.Writer, level string) log.Logger {
	return log.NewZerologLogger(log.NewConsoleLogger(w, level))
}
