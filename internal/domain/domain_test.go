package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	ev := NewIngestionEvent("evt-1", EventTypeTraceCreate, json.RawMessage(`{"name":"t"}`))

	env, err := NewEnvelope(ev, nil)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if env.ID != "evt-1" {
		t.Errorf("ID = %q, want evt-1", env.ID)
	}

	want, _ := json.Marshal(ev)
	if env.Size != len(want) {
		t.Errorf("Size = %d, want %d", env.Size, len(want))
	}
	if string(env.Payload()) != string(want) {
		t.Errorf("Payload = %s, want %s", env.Payload(), want)
	}
	if env.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", env.RetryCount)
	}
}

func TestNewEnvelope_AssignsMissingID(t *testing.T) {
	ev := NewIngestionEvent("", EventTypeSpanCreate, json.RawMessage(`{}`))

	env, err := NewEnvelope(ev, func() string { return "generated" })
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if env.ID != "generated" {
		t.Errorf("ID = %q, want generated", env.ID)
	}
	if ev.ID != "generated" {
		t.Errorf("event ID not written back: %q", ev.ID)
	}
	if !strings.Contains(string(env.Payload()), `"id":"generated"`) {
		t.Errorf("payload does not carry generated id: %s", env.Payload())
	}
}

type unmarshalableEvent struct{ C chan int }

func (unmarshalableEvent) EventID() string { return "bad" }

func TestNewEnvelope_Errors(t *testing.T) {
	if _, err := NewEnvelope(nil, nil); err == nil {
		t.Error("expected error for nil event")
	}

	_, err := NewEnvelope(unmarshalableEvent{C: make(chan int)}, nil)
	var ie *IngestError
	if !errors.As(err, &ie) || ie.Kind != KindSerialization {
		t.Fatalf("error = %v, want serialization IngestError", err)
	}
}

func TestIngestError_Retryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindNetwork, true},
		{KindRateLimit, true},
		{KindServer, true},
		{KindAuth, false},
		{KindClient, false},
		{KindValidation, false},
		{KindConfiguration, false},
		{KindSerialization, false},
		{KindAPI, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &IngestError{Kind: tt.kind}
			if got := err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
			if got := IsRetryable(fmt.Errorf("wrapped: %w", err)); got != tt.want {
				t.Errorf("IsRetryable(wrapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIngestError_SuggestedDelay(t *testing.T) {
	tests := []struct {
		name string
		err  *IngestError
		want time.Duration
	}{
		{"server default", &IngestError{Kind: KindServer, Status: 503}, DefaultServerRetryDelay},
		{"server hint", &IngestError{Kind: KindServer, RetryAfter: 2 * time.Second}, 2 * time.Second},
		{"rate limit hint", &IngestError{Kind: KindRateLimit, RetryAfter: time.Second}, time.Second},
		{"rate limit no hint", &IngestError{Kind: KindRateLimit}, 0},
		{"network", &IngestError{Kind: KindNetwork}, DefaultNetworkRetryDelay},
		{"client", &IngestError{Kind: KindClient, Status: 400}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.SuggestedDelay(); got != tt.want {
				t.Errorf("SuggestedDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIngestError_Helpers(t *testing.T) {
	err := fmt.Errorf("send: %w", &IngestError{
		Kind:       KindAuth,
		Status:     401,
		Message:    "bad key",
		RequestID:  "req-9",
		RetryAfter: 0,
	})

	if !IsAuth(err) {
		t.Error("IsAuth() = false, want true")
	}
	if got := RequestID(err); got != "req-9" {
		t.Errorf("RequestID() = %q, want req-9", got)
	}
	if !strings.Contains(err.Error(), "authentication failed: bad key") {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsAuth(errors.New("plain")) {
		t.Error("IsAuth(plain) = true")
	}
	if RetryAfter(&IngestError{Kind: KindRateLimit, RetryAfter: time.Second}) != time.Second {
		t.Error("RetryAfter() did not return hint")
	}
	if got := SuggestedDelay(fmt.Errorf("send: %w", &IngestError{Kind: KindServer, Status: 500})); got != DefaultServerRetryDelay {
		t.Errorf("SuggestedDelay(wrapped 500) = %v, want %v", got, DefaultServerRetryDelay)
	}
	if got := SuggestedDelay(errors.New("plain")); got != 0 {
		t.Errorf("SuggestedDelay(plain) = %v, want 0", got)
	}
}

func TestIngestionResult(t *testing.T) {
	var r IngestionResult
	r.AddSuccess("a", "b")
	if !r.IsSuccess() || r.IsPartialFailure() || r.Err() != nil {
		t.Fatalf("all-success result misreported: %+v", r)
	}

	r.AddFailure(EventError{EventID: "c", Message: "boom", Code: "500", Retryable: true})
	if r.IsSuccess() || !r.IsPartialFailure() {
		t.Fatalf("partial result misreported: %+v", r)
	}

	var pf *PartialFailureError
	if !errors.As(r.Err(), &pf) {
		t.Fatalf("Err() = %v, want *PartialFailureError", r.Err())
	}
	if pf.SuccessCount != 2 || pf.FailureCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", pf.SuccessCount, pf.FailureCount)
	}
	if !IsRetryable(pf) {
		t.Error("partial failure should be retryable")
	}

	var other IngestionResult
	other.AddSuccess("d")
	r.Merge(other)
	if r.SuccessCount != 3 || r.FailureCount != 1 {
		t.Errorf("after merge counts = %d/%d, want 3/1", r.SuccessCount, r.FailureCount)
	}
}

func TestIngestionResult_Supersede(t *testing.T) {
	var first IngestionResult
	first.AddSuccess("a")
	first.AddFailure(
		EventError{EventID: "b", Message: "busy", Code: "503", Retryable: true},
		EventError{EventID: "c", Message: "busy", Code: "503", Retryable: true},
		EventError{EventID: "d", Message: "bad", Code: "400"},
		EventError{EventID: "e", Message: "busy", Code: "503", Retryable: true},
	)

	var second IngestionResult
	second.AddSuccess("b")
	second.AddFailure(EventError{EventID: "c", Message: "bad", Code: "400"})

	first.Supersede(second)

	if fmt.Sprint(first.SuccessIDs) != "[a b]" {
		t.Errorf("SuccessIDs = %v, want [a b]", first.SuccessIDs)
	}
	var failed []string
	for _, f := range first.Failures {
		failed = append(failed, f.EventID+"/"+f.Code)
	}
	// e was not resent, so its retryable failure is still the latest news
	if fmt.Sprint(failed) != "[d/400 e/503 c/400]" {
		t.Errorf("Failures = %v, want [d/400 e/503 c/400]", failed)
	}
	if first.SuccessCount != 2 || first.FailureCount != 3 {
		t.Errorf("counts = %d/%d, want 2/3", first.SuccessCount, first.FailureCount)
	}
}

func TestEventError_Error(t *testing.T) {
	e := EventError{EventID: "x", Message: "bad", Code: "429", Retryable: true}
	want := "Event x failed: bad (code: 429) [retryable]"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	e = EventError{EventID: "y", Message: "bad"}
	if e.Error() != "Event y failed: bad" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestBatchSizeError(t *testing.T) {
	err := &BatchSizeError{Size: 10, MaxSize: 5}
	if err.Error() != "batch size exceeded: 10 bytes (max: 5 bytes)" {
		t.Errorf("Error() = %q", err.Error())
	}
}
