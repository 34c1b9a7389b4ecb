// Package traceship provides an embeddable batch ingestion client for
// tracing and telemetry events.
//
// Events handed to a [Client] are queued in memory, grouped into chunks that
// respect a count and a byte limit, and POSTed to the ingestion endpoint of
// the configured service. Failed chunks are retried with exponential backoff,
// honouring Retry-After hints, and per-event failures reported in multi-status
// responses are re-queued while their retry budget lasts.
//
// # Basic Usage
//
//	cfg := traceship.Config{
//	    PublicKey: "pk-...",
//	    SecretKey: "sk-...",
//	}
//
//	client, err := traceship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	body, _ := json.Marshal(map[string]any{"name": "checkout"})
//	if err := client.Add(ctx, traceship.NewIngestionEvent("", traceship.EventTypeTraceCreate, body)); err != nil {
//	    log.Printf("event not queued: %v", err)
//	}
//
//	// on exit
//	res, err := client.Shutdown(ctx)
//
// # Configuration
//
// A [Config] needs the public and secret key. Every other field has a default
// applied by [Config.SetDefaults]; [DefaultConfig] additionally sets three
// retries.
//
// # Backpressure
//
// The queue holds at most MaxQueueSize events. When it is full, Add blocks
// ([Block], the default), rejects the new event with [ErrQueueFull]
// ([DropNew]), or evicts the oldest queued event ([DropOldest]). Dropped
// events are counted in [MetricsSnapshot].
//
// # Flushing
//
// A flush happens every FlushInterval, whenever the queue reaches MaxEvents
// or MaxBytes, on [Client.Flush], and during [Client.Shutdown]. Flushes never
// overlap and no event is sent twice by concurrent flushes.
//
// # Event Handling
//
// Implement [EventHandler] (or embed [BaseEventHandler]) and pass it via
// [WithEventHandler] to observe state changes, chunk deliveries and flush
// results. Callbacks run synchronously and should return quickly.
//
// # Metrics
//
// [Client.Metrics] returns the counters at any time. [WithPrometheusRegisterer]
// additionally exports them, with chunk latency histograms, to Prometheus.
//
// # Lifecycle States
//
// A client moves through Starting, Running, Stopping and Stopped. Add fails
// with [ErrShuttingDown] once Shutdown has begun.
package traceship
