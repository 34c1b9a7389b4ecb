package traceship

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	registerer   prometheus.Registerer
}

// WithHTTPClient sets a custom HTTP client.
// Config.HTTPTimeout is ignored when one is given.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle and delivery events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPrometheusRegisterer registers the client's metrics with reg.
// The collector is unregistered again by Shutdown.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
