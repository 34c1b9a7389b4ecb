package ports

import (
	"context"

	"github.com/bft-labs/traceship/internal/domain"
)

// BatchSender transmits one chunk of envelopes to the ingestion service.
//
// A nil error means the request was answered with a success or multi-status
// response; the result then carries per-event successes and failures. Any
// other outcome is returned as an error (*domain.IngestError or
// *domain.BatchSizeError). Implementations must not retry internally.
type BatchSender interface {
	Send(ctx context.Context, chunk []*domain.Envelope) (domain.IngestionResult, error)
}

// SendMetadata carries the credentials and endpoint for send operations.
type SendMetadata struct {
	// BaseURL is the ingestion service base URL without trailing slash
	BaseURL string

	// PublicKey and SecretKey are sent as HTTP basic auth
	PublicKey string
	SecretKey string

	// UserAgent overrides the default User-Agent header when non-empty
	UserAgent string
}
