package traceship

import (
	"time"

	"github.com/bft-labs/traceship/internal/app"
)

// State represents the lifecycle state of a Client.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// EventHandler receives notifications about client activity.
// Callbacks run on the goroutine doing the work and must not block.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnChunkSent(event ChunkSentEvent)
	OnChunkError(event ChunkErrorEvent)
	OnFlush(event FlushEvent)
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	PreviousState State
	NewState      State
	Reason        string
	Timestamp     time.Time
}

// ChunkSentEvent is emitted when a chunk was accepted by the service.
// Per-event failures inside a multi-status response are reported by OnFlush.
type ChunkSentEvent struct {
	EventCount int
	BytesSent  int
	Duration   time.Duration
	Timestamp  time.Time
}

// ChunkErrorEvent is emitted when a chunk could not be delivered after
// all attempts.
type ChunkErrorEvent struct {
	Error      error
	EventCount int
	Retryable  bool
	Timestamp  time.Time
}

// FlushEvent is emitted after every flush that did work.
type FlushEvent struct {
	Result    IngestionResult
	Error     error
	Timestamp time.Time
}

// BaseEventHandler provides no-op implementations of EventHandler.
// Embed it to handle only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnChunkSent(ChunkSentEvent)     {}
func (BaseEventHandler) OnChunkError(ChunkErrorEvent)   {}
func (BaseEventHandler) OnFlush(FlushEvent)             {}

// chunkObserver is the part of the Prometheus collector fed by chunk outcomes.
type chunkObserver interface {
	ObserveChunk(events int, duration time.Duration)
	ObserveChunkError(err error)
}

// eventEmitter fans internal batcher callbacks out to the user handler and
// the metrics collector.
type eventEmitter struct {
	handler  EventHandler
	observer chunkObserver
}

func (e *eventEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		PreviousState: convertState(previous),
		NewState:      convertState(current),
		Reason:        reason,
		Timestamp:     time.Now(),
	})
}

func (e *eventEmitter) OnChunkSent(events, bytes int, duration time.Duration) {
	if e.observer != nil {
		e.observer.ObserveChunk(events, duration)
	}
	if e.handler != nil {
		e.handler.OnChunkSent(ChunkSentEvent{
			EventCount: events,
			BytesSent:  bytes,
			Duration:   duration,
			Timestamp:  time.Now(),
		})
	}
}

func (e *eventEmitter) OnChunkError(err error, events int, retryable bool) {
	if e.observer != nil {
		e.observer.ObserveChunkError(err)
	}
	if e.handler != nil {
		e.handler.OnChunkError(ChunkErrorEvent{
			Error:      err,
			EventCount: events,
			Retryable:  retryable,
			Timestamp:  time.Now(),
		})
	}
}

func (e *eventEmitter) OnFlush(result IngestionResult, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnFlush(FlushEvent{
		Result:    result,
		Error:     err,
		Timestamp: time.Now(),
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateStopped:
		return StateStopped
	default:
		return State(-1)
	}
}
