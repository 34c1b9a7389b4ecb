package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent error conditions in the traceship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrShuttingDown is returned by Add once Shutdown has been called.
	ErrShuttingDown = errors.New("traceship: shutting down")

	// ErrQueueFull is returned by Add under the DropNew policy when the queue is at capacity.
	ErrQueueFull = errors.New("traceship: queue full")

	// ErrShutdownTimeout is returned when the scheduler did not settle in time.
	ErrShutdownTimeout = errors.New("traceship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("traceship: invalid configuration")

	// ErrNotRunning is returned for lifecycle transitions out of order.
	ErrNotRunning = errors.New("traceship: not running")
)

// ServerMaxRequestBytes is the hard request size limit of the ingestion endpoint.
const ServerMaxRequestBytes = 5_000_000

// DefaultServerRetryDelay is the suggested wait after a 5xx without a Retry-After header.
const DefaultServerRetryDelay = 5 * time.Second

// DefaultNetworkRetryDelay is the suggested wait after a transport failure.
const DefaultNetworkRetryDelay = time.Second

// ErrorKind classifies an IngestError.
type ErrorKind int

const (
	KindAPI ErrorKind = iota
	KindNetwork
	KindSerialization
	KindAuth
	KindRateLimit
	KindServer
	KindClient
	KindValidation
	KindConfiguration
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindSerialization:
		return "serialization"
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// IngestError is a classified failure of an ingestion request.
type IngestError struct {
	Kind ErrorKind

	// Status is the HTTP status code, 0 when no response was received
	Status int

	Message string

	// RequestID is the X-Request-Id of the failed response, if any
	RequestID string

	// RetryAfter is the server-supplied wait hint, 0 when absent
	RetryAfter time.Duration

	// Err is the underlying cause, if any
	Err error
}

func (e *IngestError) Error() string {
	var msg string
	switch e.Kind {
	case KindAuth:
		msg = "authentication failed: " + e.Message
	case KindRateLimit:
		msg = fmt.Sprintf("rate limit exceeded (retry after %s)", e.RetryAfter)
	case KindServer:
		msg = fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
	case KindClient:
		msg = fmt.Sprintf("client error (status %d): %s", e.Status, e.Message)
	default:
		msg = e.Kind.String() + " error: " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.RequestID != "" {
		msg += " (request id " + e.RequestID + ")"
	}
	return msg
}

func (e *IngestError) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed if sent again.
func (e *IngestError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	default:
		return false
	}
}

// SuggestedDelay returns how long a caller should wait before retrying.
// The server hint wins; server and network failures fall back to defaults.
func (e *IngestError) SuggestedDelay() time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	switch e.Kind {
	case KindServer:
		return DefaultServerRetryDelay
	case KindNetwork:
		return DefaultNetworkRetryDelay
	default:
		return 0
	}
}

// BatchSizeError reports a single event (or request) over the size limit.
// It is terminal: no amount of chunking can make it fit.
type BatchSizeError struct {
	Size    int
	MaxSize int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("batch size exceeded: %d bytes (max: %d bytes)", e.Size, e.MaxSize)
}

// PartialFailureError treats a result with failures as a single error value.
type PartialFailureError struct {
	SuccessCount int
	FailureCount int
	Errors       []EventError
	SuccessIDs   []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial batch failure: %d succeeded, %d failed", e.SuccessCount, e.FailureCount)
}

// IsRetryable reports whether err is worth retrying.
// Partial failures are retryable because the failed subset may be resent.
func IsRetryable(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Retryable()
	}
	var pf *PartialFailureError
	return errors.As(err, &pf)
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie) && ie.Kind == KindAuth
}

// RetryAfter returns the server-supplied retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.RetryAfter
	}
	return 0
}

// SuggestedDelay returns the minimum wait before retrying err: the server
// hint, or the default for server and network failures.
func SuggestedDelay(err error) time.Duration {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.SuggestedDelay()
	}
	return 0
}

// RequestID returns the request id carried by err, if any.
func RequestID(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.RequestID
	}
	return ""
}
