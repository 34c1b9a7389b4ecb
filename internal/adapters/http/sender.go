package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
)

const (
	ingestionEndpoint = "/api/public/ingestion"
	defaultUserAgent  = "traceship (Go)"
)

// maxRetryAfterSeconds keeps a Retry-After delta within time.Duration.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// maxErrorBody caps how much of an error response body is kept as message.
const maxErrorBody = 4 << 10

// BatchSender implements ports.BatchSender using HTTP.
type BatchSender struct {
	client   ports.HTTPClient
	metadata ports.SendMetadata
	logger   log.Logger
}

// NewBatchSender creates a new HTTP batch sender.
func NewBatchSender(client ports.HTTPClient, metadata ports.SendMetadata, logger log.Logger) *BatchSender {
	metadata.BaseURL = strings.TrimRight(metadata.BaseURL, "/")
	if metadata.UserAgent == "" {
		metadata.UserAgent = defaultUserAgent
	}
	return &BatchSender{
		client:   client,
		metadata: metadata,
		logger:   log.OrNoop(logger),
	}
}

// ingestionRequest is the wire body of a batch POST.
type ingestionRequest struct {
	Batch    []json.RawMessage `json:"batch"`
	Metadata json.RawMessage   `json:"metadata"`
}

// Send transmits one chunk and classifies the response.
func (s *BatchSender) Send(ctx context.Context, chunk []*domain.Envelope) (domain.IngestionResult, error) {
	if len(chunk) == 0 {
		return domain.IngestionResult{}, nil
	}

	reqBody := ingestionRequest{
		Batch:    make([]json.RawMessage, len(chunk)),
		Metadata: json.RawMessage("null"),
	}
	for i, env := range chunk {
		reqBody.Batch[i] = env.Payload()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.IngestionResult{}, &domain.IngestError{Kind: domain.KindSerialization, Message: "marshal batch", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.metadata.BaseURL+ingestionEndpoint, bytes.NewReader(body))
	if err != nil {
		return domain.IngestionResult{}, &domain.IngestError{Kind: domain.KindConfiguration, Message: "create request", Err: err}
	}

	req.SetBasicAuth(s.metadata.PublicKey, s.metadata.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.metadata.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.IngestionResult{}, &domain.IngestError{Kind: domain.KindNetwork, Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	s.logger.Debug("ingestion response",
		log.Int("status", resp.StatusCode),
		log.Int("events", len(chunk)),
		log.Int("bytes", len(body)),
	)

	return classify(resp, chunk)
}

// classify maps an ingestion response onto a result or a typed error.
func classify(resp *http.Response, chunk []*domain.Envelope) (domain.IngestionResult, error) {
	requestID := resp.Header.Get("X-Request-Id")

	switch code := resp.StatusCode; {
	case code == http.StatusOK || code == http.StatusCreated || code == http.StatusAccepted:
		var res domain.IngestionResult
		res.AddSuccess(domain.IDs(chunk)...)
		return res, nil

	case code == http.StatusMultiStatus:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return domain.IngestionResult{}, &domain.IngestError{
				Kind: domain.KindNetwork, Status: code, Message: "read 207 response", RequestID: requestID, Err: err,
			}
		}
		return parseMultiStatus(raw, chunk, requestID)

	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.IngestionResult{}, &domain.IngestError{
			Kind: domain.KindAuth, Status: code, Message: readMessage(resp, "Authentication failed"), RequestID: requestID,
		}

	case code == http.StatusRequestEntityTooLarge:
		if len(chunk) == 1 {
			return domain.IngestionResult{}, &domain.BatchSizeError{Size: chunk[0].Size, MaxSize: domain.ServerMaxRequestBytes}
		}
		return domain.IngestionResult{}, &domain.IngestError{
			Kind: domain.KindClient, Status: code, Message: readMessage(resp, "Payload too large"), RequestID: requestID,
		}

	case code == http.StatusTooManyRequests:
		return domain.IngestionResult{}, &domain.IngestError{
			Kind:       domain.KindRateLimit,
			Status:     code,
			Message:    readMessage(resp, "Rate limit exceeded"),
			RequestID:  requestID,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}

	case code >= 500 && code <= 599:
		return domain.IngestionResult{}, &domain.IngestError{
			Kind:       domain.KindServer,
			Status:     code,
			Message:    readMessage(resp, "Server error"),
			RequestID:  requestID,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}

	default:
		return domain.IngestionResult{}, &domain.IngestError{
			Kind:      domain.KindClient,
			Status:    code,
			Message:   readMessage(resp, fmt.Sprintf("Unexpected status: %d", code)),
			RequestID: requestID,
		}
	}
}

type multiStatusResponse struct {
	Successes []struct {
		ID     string `json:"id"`
		Status *int   `json:"status"`
	} `json:"successes"`
	Errors []struct {
		ID      string  `json:"id"`
		Status  *int    `json:"status"`
		Error   *string `json:"error"`
		Message *string `json:"message"`
	} `json:"errors"`
}

// parseMultiStatus reconciles a 207 body against the chunk that was sent.
// Envelopes the server did not mention at all are reported as retryable
// failures so that nothing in the chunk goes unaccounted for.
func parseMultiStatus(raw []byte, chunk []*domain.Envelope, requestID string) (domain.IngestionResult, error) {
	var ms multiStatusResponse
	if err := json.Unmarshal(raw, &ms); err != nil {
		return domain.IngestionResult{}, &domain.IngestError{
			Kind: domain.KindAPI, Status: http.StatusMultiStatus, Message: "parse 207 response", RequestID: requestID, Err: err,
		}
	}

	seen := make(map[string]bool, len(chunk))
	var res domain.IngestionResult

	for _, s := range ms.Successes {
		res.AddSuccess(s.ID)
		seen[s.ID] = true
	}

	for _, e := range ms.Errors {
		msg := "Unknown error"
		switch {
		case e.Message != nil:
			msg = *e.Message
		case e.Error != nil:
			msg = *e.Error
		}

		ee := domain.EventError{EventID: e.ID, Message: msg}
		if e.Status != nil {
			ee.Code = strconv.Itoa(*e.Status)
			ee.Retryable = *e.Status >= 500 || *e.Status == http.StatusTooManyRequests
		}
		res.AddFailure(ee)
		seen[e.ID] = true
	}

	for _, env := range chunk {
		if !seen[env.ID] {
			res.AddFailure(domain.EventError{
				EventID:   env.ID,
				Message:   "missing from multi-status response",
				Retryable: true,
			})
		}
	}

	return res, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable or
// past values yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(min(secs, maxRetryAfterSeconds)) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func readMessage(resp *http.Response, fallback string) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return fallback
	}
	return strings.TrimSpace(string(b))
}
