package traceship

import (
	"encoding/json"

	"github.com/bft-labs/traceship/internal/app"
	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
)

// Type aliases so callers never import internal packages.
type (
	// Event is anything the batcher can send: it reports its id and
	// marshals to JSON.
	Event = domain.Event

	// IngestionEvent is the stock Event implementation.
	IngestionEvent = domain.IngestionEvent

	IngestionResult     = domain.IngestionResult
	EventError          = domain.EventError
	MetricsSnapshot     = domain.MetricsSnapshot
	IngestError         = domain.IngestError
	ErrorKind           = domain.ErrorKind
	BatchSizeError      = domain.BatchSizeError
	PartialFailureError = domain.PartialFailureError

	BackpressurePolicy = app.BackpressurePolicy

	// HTTPClient is the interface for HTTP operations.
	HTTPClient = ports.HTTPClient

	// Logger is the interface for structured logging.
	Logger = log.Logger

	// LogField is a key-value pair for structured logging.
	LogField = log.Field
)

// Backpressure policies applied by Add when the queue is full.
const (
	Block      = app.Block
	DropNew    = app.DropNew
	DropOldest = app.DropOldest
)

// Error kinds of an IngestError.
const (
	KindAPI           = domain.KindAPI
	KindNetwork       = domain.KindNetwork
	KindSerialization = domain.KindSerialization
	KindAuth          = domain.KindAuth
	KindRateLimit     = domain.KindRateLimit
	KindServer        = domain.KindServer
	KindClient        = domain.KindClient
	KindValidation    = domain.KindValidation
	KindConfiguration = domain.KindConfiguration
)

// Ingestion event types.
const (
	EventTypeTraceCreate      = domain.EventTypeTraceCreate
	EventTypeSpanCreate       = domain.EventTypeSpanCreate
	EventTypeSpanUpdate       = domain.EventTypeSpanUpdate
	EventTypeGenerationCreate = domain.EventTypeGenerationCreate
	EventTypeGenerationUpdate = domain.EventTypeGenerationUpdate
	EventTypeEventCreate      = domain.EventTypeEventCreate
	EventTypeScoreCreate      = domain.EventTypeScoreCreate
	EventTypeSDKLog           = domain.EventTypeSDKLog
)

// Sentinel errors, checked with errors.Is.
var (
	ErrShuttingDown    = domain.ErrShuttingDown
	ErrQueueFull       = domain.ErrQueueFull
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)

// NewIngestionEvent creates an event stamped with the current time.
// An empty id is replaced by a random UUID when the event is added.
func NewIngestionEvent(id, eventType string, body json.RawMessage) *IngestionEvent {
	return domain.NewIngestionEvent(id, eventType, body)
}

// ParseBackpressurePolicy parses "block", "drop-new" or "drop-oldest".
func ParseBackpressurePolicy(s string) (BackpressurePolicy, error) {
	return app.ParseBackpressurePolicy(s)
}

// IsRetryable reports whether err may succeed when tried again.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return domain.IsAuth(err) }
