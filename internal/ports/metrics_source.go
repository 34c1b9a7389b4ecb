package ports

import "github.com/bft-labs/traceship/internal/domain"

// MetricsSource exposes the counters of a running batcher.
type MetricsSource interface {
	Metrics() domain.MetricsSnapshot
}
