package ports

import (
	"context"

	"github.com/bft-labs/traceship/internal/domain"
)

// EventSource yields ingestion events one at a time.
type EventSource interface {
	// Next blocks until an event is available.
	// Returns io.EOF when the source is exhausted.
	Next(ctx context.Context) (*domain.IngestionEvent, error)

	// Close releases all resources held by the source.
	Close() error
}
