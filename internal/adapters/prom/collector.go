// Package prom exports batcher metrics to Prometheus.
package prom

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
)

const namespace = "traceship"

// Collector is a prometheus.Collector over a batcher's counters.
// Counters are read from the source on every scrape; chunk latencies are
// observed as they happen through ObserveChunk.
type Collector struct {
	source ports.MetricsSource

	queued    *prometheus.Desc
	flushed   *prometheus.Desc
	failed    *prometheus.Desc
	dropped   *prometheus.Desc
	retries   *prometheus.Desc
	lastError *prometheus.Desc

	chunkDuration prometheus.Histogram
	chunkEvents   prometheus.Histogram
	chunkErrors   *prometheus.CounterVec
}

// NewCollector creates a collector reading from source.
func NewCollector(source ports.MetricsSource) *Collector {
	return &Collector{
		source: source,
		queued: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_queued"),
			"Events currently awaiting transmission",
			nil, nil,
		),
		flushed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_flushed_total"),
			"Events accepted by the ingestion service",
			nil, nil,
		),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_failed_total"),
			"Events that failed terminally",
			nil, nil,
		),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_dropped_total"),
			"Events dropped by backpressure",
			nil, nil,
		),
		retries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "retries_total"),
			"Chunk resends and event re-queues",
			nil, nil,
		),
		lastError: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_error_timestamp_seconds"),
			"Unix time of the latest failure, 0 if none",
			nil, nil,
		),
		chunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_send_duration_seconds",
			Help:      "Time taken to deliver a chunk, retries included",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		chunkEvents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_events",
			Help:      "Events per delivered chunk",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		chunkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_errors_total",
			Help:      "Chunks that could not be delivered",
		}, []string{"kind"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queued
	ch <- c.flushed
	ch <- c.failed
	ch <- c.dropped
	ch <- c.retries
	ch <- c.lastError
	c.chunkDuration.Describe(ch)
	c.chunkEvents.Describe(ch)
	c.chunkErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Metrics()

	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.Queued))
	ch <- prometheus.MustNewConstMetric(c.flushed, prometheus.CounterValue, float64(s.Flushed))
	ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(s.Failed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.Dropped))
	ch <- prometheus.MustNewConstMetric(c.retries, prometheus.CounterValue, float64(s.Retries))

	var last float64
	if !s.LastErrorAt.IsZero() {
		last = float64(s.LastErrorAt.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastError, prometheus.GaugeValue, last)

	c.chunkDuration.Collect(ch)
	c.chunkEvents.Collect(ch)
	c.chunkErrors.Collect(ch)
}

// ObserveChunk records a delivered chunk.
func (c *Collector) ObserveChunk(events int, duration time.Duration) {
	c.chunkDuration.Observe(duration.Seconds())
	c.chunkEvents.Observe(float64(events))
}

// ObserveChunkError records a chunk that could not be delivered.
func (c *Collector) ObserveChunkError(err error) {
	c.chunkErrors.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	var ie *domain.IngestError
	if errors.As(err, &ie) {
		return ie.Kind.String()
	}
	var bse *domain.BatchSizeError
	if errors.As(err, &bse) {
		return "batch_size"
	}
	return "unknown"
}
