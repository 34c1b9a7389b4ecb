package domain

import (
	"fmt"
	"strings"
)

// EventError describes why a single event in a batch failed.
type EventError struct {
	// EventID is the id of the failed event
	EventID string

	// Message is the server (or local) error message
	Message string

	// Code is the per-event status code, empty when unknown
	Code string

	// Retryable reports whether resending the event may succeed
	Retryable bool
}

// Error formats the failure like "Event abc failed: msg (code: 500) [retryable]".
func (e EventError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event %s failed: %s", e.EventID, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " (code: %s)", e.Code)
	}
	if e.Retryable {
		b.WriteString(" [retryable]")
	}
	return b.String()
}

// IngestionResult aggregates the outcome of one send or one flush sweep.
type IngestionResult struct {
	SuccessIDs   []string
	Failures     []EventError
	SuccessCount int
	FailureCount int
}

// Merge appends other into r and recomputes the counts.
func (r *IngestionResult) Merge(other IngestionResult) {
	r.SuccessIDs = append(r.SuccessIDs, other.SuccessIDs...)
	r.Failures = append(r.Failures, other.Failures...)
	r.SuccessCount = len(r.SuccessIDs)
	r.FailureCount = len(r.Failures)
}

// Supersede merges later into r. Retryable failures in r whose event shows
// up again in later are dropped, so every event is reported once with its
// latest outcome.
func (r *IngestionResult) Supersede(later IngestionResult) {
	seen := make(map[string]bool, len(later.SuccessIDs)+len(later.Failures))
	for _, id := range later.SuccessIDs {
		seen[id] = true
	}
	for _, f := range later.Failures {
		seen[f.EventID] = true
	}

	var kept []EventError
	for _, f := range r.Failures {
		if f.Retryable && seen[f.EventID] {
			continue
		}
		kept = append(kept, f)
	}
	r.Failures = kept
	r.Merge(later)
}

// AddSuccess records successful ids.
func (r *IngestionResult) AddSuccess(ids ...string) {
	r.SuccessIDs = append(r.SuccessIDs, ids...)
	r.SuccessCount = len(r.SuccessIDs)
}

// AddFailure records failed events.
func (r *IngestionResult) AddFailure(failures ...EventError) {
	r.Failures = append(r.Failures, failures...)
	r.FailureCount = len(r.Failures)
}

// IsSuccess returns true if no event failed.
func (r IngestionResult) IsSuccess() bool {
	return r.FailureCount == 0
}

// IsPartialFailure returns true if some events succeeded and some failed.
func (r IngestionResult) IsPartialFailure() bool {
	return r.SuccessCount > 0 && r.FailureCount > 0
}

// Err returns a *PartialFailureError when any event failed, nil otherwise.
func (r IngestionResult) Err() error {
	if r.FailureCount == 0 {
		return nil
	}
	return &PartialFailureError{
		SuccessCount: r.SuccessCount,
		FailureCount: r.FailureCount,
		Errors:       append([]EventError(nil), r.Failures...),
		SuccessIDs:   append([]string(nil), r.SuccessIDs...),
	}
}
