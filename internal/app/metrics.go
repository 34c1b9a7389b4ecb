package app

import (
	"sync/atomic"
	"time"

	"github.com/bft-labs/traceship/internal/domain"
)

// Metrics holds the progress counters of one Batcher.
// Every field is an independent atomic; readers never block writers.
type Metrics struct {
	// queued can dip below zero for a moment when a flush drains an
	// envelope before its Add has counted it
	queued  atomic.Int64
	flushed atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
	retries atomic.Int64

	// unix nanoseconds, 0 when no failure has happened yet
	lastError atomic.Int64
}

// Snapshot reads every counter.
func (m *Metrics) Snapshot() domain.MetricsSnapshot {
	s := domain.MetricsSnapshot{
		Queued:  max(m.queued.Load(), 0),
		Flushed: m.flushed.Load(),
		Failed:  m.failed.Load(),
		Dropped: m.dropped.Load(),
		Retries: m.retries.Load(),
	}
	if ns := m.lastError.Load(); ns != 0 {
		s.LastErrorAt = time.Unix(0, ns)
	}
	return s
}

func (m *Metrics) markError(at time.Time) {
	m.lastError.Store(at.UnixNano())
}
