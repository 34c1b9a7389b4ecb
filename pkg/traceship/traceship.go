package traceship

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	sender "github.com/bft-labs/traceship/internal/adapters/http"
	"github.com/bft-labs/traceship/internal/adapters/prom"
	"github.com/bft-labs/traceship/internal/app"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
)

// Client batches events and ships them to the ingestion service.
// All methods are safe for concurrent use.
type Client struct {
	batcher    *app.Batcher
	collector  *prom.Collector
	registerer prometheus.Registerer
	logger     log.Logger
}

// New creates a running Client. The background flush timer starts
// immediately; call Shutdown to deliver what is left and stop it.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	logger := log.OrNoop(o.logger)

	c := &Client{
		registerer: o.registerer,
		logger:     logger,
	}

	emitter := &eventEmitter{handler: o.eventHandler}
	if o.registerer != nil {
		c.collector = prom.NewCollector(c)
		emitter.observer = c.collector
	}

	bs := sender.NewBatchSender(o.httpClient, ports.SendMetadata{
		BaseURL:   cfg.BaseURL,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		UserAgent: UserAgent(),
	}, logger)

	b, err := app.NewBatcher(cfg.batcherConfig(), bs, logger, emitter, emitter)
	if err != nil {
		return nil, err
	}
	c.batcher = b

	if c.collector != nil {
		if err := o.registerer.Register(c.collector); err != nil {
			_, _ = b.Shutdown(context.Background())
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	logger.Debug("client created",
		log.String("base_url", cfg.BaseURL),
		log.Int("max_events", cfg.MaxEvents),
		log.Int("max_bytes", cfg.MaxBytes),
		log.Duration("flush_interval", cfg.FlushInterval),
		log.String("backpressure", cfg.Backpressure.String()),
	)
	return c, nil
}

// Add submits ev for delivery. It returns ErrShuttingDown after Shutdown,
// ErrQueueFull under DropNew when the queue is full, a *BatchSizeError when
// ev alone exceeds MaxBytes, or ctx's error when a Block wait is cancelled.
// Events without an id get a random one.
func (c *Client) Add(ctx context.Context, ev Event) error {
	return c.batcher.Add(ctx, ev)
}

// Flush sends everything queued now and reports per-event outcomes.
// The returned error is non-nil only when the flush was aborted.
func (c *Client) Flush(ctx context.Context) (IngestionResult, error) {
	return c.batcher.Flush(ctx)
}

// Metrics returns a snapshot of the delivery counters.
func (c *Client) Metrics() MetricsSnapshot {
	return c.batcher.Metrics()
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return convertState(c.batcher.State())
}

// Shutdown stops accepting events, delivers what is queued and returns the
// combined result. Calling it again only flushes.
func (c *Client) Shutdown(ctx context.Context) (IngestionResult, error) {
	res, err := c.batcher.Shutdown(ctx)
	if c.collector != nil {
		c.registerer.Unregister(c.collector)
	}
	return res, err
}
