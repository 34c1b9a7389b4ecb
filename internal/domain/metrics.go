package domain

import "time"

// MetricsSnapshot is a point-in-time copy of a batcher's counters.
// Fields are read one at a time, so a snapshot is not atomic across fields.
type MetricsSnapshot struct {
	// Queued approximates the number of events awaiting transmission
	Queued int64

	// Flushed counts events the server accepted
	Flushed int64

	// Failed counts terminal per-event failures
	Failed int64

	// Dropped counts events lost to backpressure
	Dropped int64

	// Retries counts chunk resends and event re-queues
	Retries int64

	// LastErrorAt is the time of the latest failure, zero if none
	LastErrorAt time.Time
}
