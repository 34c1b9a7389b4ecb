package domain

import (
	"encoding/json"
	"time"
)

// Event is a single ingestion record handed to the batcher.
// Implementations must marshal to JSON; the marshalled form is what goes on
// the wire inside the batch array.
type Event interface {
	// EventID returns the identifier the ingestion service echoes back in
	// multi-status responses. An empty id makes the batcher assign one.
	EventID() string
}

// Ingestion event types understood by the ingestion endpoint.
const (
	EventTypeTraceCreate      = "trace-create"
	EventTypeSpanCreate       = "span-create"
	EventTypeSpanUpdate       = "span-update"
	EventTypeGenerationCreate = "generation-create"
	EventTypeGenerationUpdate = "generation-update"
	EventTypeEventCreate      = "event-create"
	EventTypeScoreCreate      = "score-create"
	EventTypeSDKLog           = "sdk-log"
)

// IngestionEvent is the generic envelope format used by the ingestion API.
// Body is left as raw JSON; building it is the job of the record builders.
type IngestionEvent struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Body      json.RawMessage `json:"body"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// NewIngestionEvent creates an event of the given type stamped with the
// current time in RFC3339 (millisecond precision, UTC).
func NewIngestionEvent(id, eventType string, body json.RawMessage) *IngestionEvent {
	return &IngestionEvent{
		ID:        id,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Type:      eventType,
		Body:      body,
	}
}

// EventID implements Event.
func (e *IngestionEvent) EventID() string {
	if e == nil {
		return ""
	}
	return e.ID
}
