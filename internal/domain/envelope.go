package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps an Event with the bookkeeping the batcher needs.
// The serialized payload is computed once at construction and reused for
// every send attempt.
type Envelope struct {
	// Event is the caller-supplied record
	Event Event

	// ID is the identifier used to reconcile multi-status responses
	ID string

	// Size is the serialized byte size of Event
	Size int

	// RetryCount is the number of times the envelope was re-queued
	RetryCount int

	payload json.RawMessage
}

// IDAssigner is implemented by events that accept an identifier assigned by
// the batcher when they were submitted without one.
type IDAssigner interface {
	SetEventID(id string)
}

// SetEventID implements IDAssigner.
func (e *IngestionEvent) SetEventID(id string) { e.ID = id }

// NewEnvelope serializes the event and wraps it.
// If the event carries no id, newID is called to produce one; events that
// implement IDAssigner get the generated id written back before marshalling
// so the wire payload and the tracked id agree.
func NewEnvelope(ev Event, newID func() string) (*Envelope, error) {
	if ev == nil {
		return nil, &IngestError{Kind: KindValidation, Message: "event is nil"}
	}

	id := ev.EventID()
	if id == "" && newID != nil {
		id = newID()
		if a, ok := ev.(IDAssigner); ok {
			a.SetEventID(id)
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, &IngestError{
			Kind:    KindSerialization,
			Message: fmt.Sprintf("marshal event %s", id),
			Err:     err,
		}
	}

	return &Envelope{
		Event:   ev,
		ID:      id,
		Size:    len(payload),
		payload: payload,
	}, nil
}

// Payload returns the serialized event.
func (e *Envelope) Payload() json.RawMessage {
	return e.payload
}

// TotalSize returns the summed serialized size of envs.
func TotalSize(envs []*Envelope) int {
	total := 0
	for _, e := range envs {
		total += e.Size
	}
	return total
}

// IDs returns the ids of envs in order.
func IDs(envs []*Envelope) []string {
	ids := make([]string, len(envs))
	for i, e := range envs {
		ids[i] = e.ID
	}
	return ids
}
