package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bft-labs/traceship/internal/domain"
)

// BackpressurePolicy is the admission rule applied when the queue is full.
type BackpressurePolicy int

const (
	// Block makes Add wait until space frees up.
	Block BackpressurePolicy = iota
	// DropNew rejects the incoming event.
	DropNew
	// DropOldest evicts the oldest queued event to admit the new one.
	DropOldest
)

// String returns the policy name as accepted by ParseBackpressurePolicy.
func (p BackpressurePolicy) String() string {
	switch p {
	case Block:
		return "block"
	case DropNew:
		return "drop-new"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// ParseBackpressurePolicy parses "block", "drop-new" or "drop-oldest".
// Underscores and case are ignored.
func ParseBackpressurePolicy(s string) (BackpressurePolicy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "block", "":
		return Block, nil
	case "drop-new", "dropnew":
		return DropNew, nil
	case "drop-oldest", "dropoldest":
		return DropOldest, nil
	default:
		return Block, fmt.Errorf("%w: unknown backpressure policy %q", domain.ErrInvalidConfig, s)
	}
}

// pushResult reports the queue state right after an admission.
type pushResult struct {
	// evicted is the envelope dropped to make room, if any
	evicted *domain.Envelope
	count   int
	bytes   int
}

// queue is the single buffer of envelopes awaiting transmission.
// New events are appended at the tail, retries are put back at the head,
// and a flush drains everything at once.
type queue struct {
	mu       sync.Mutex
	items    []*domain.Envelope
	bytes    int
	capacity int
	closed   bool

	// space is closed and replaced whenever room frees up
	space chan struct{}

	// onWait is called when a Block caller starts waiting
	onWait func()
}

func newQueue(capacity int, onWait func()) *queue {
	return &queue{
		capacity: capacity,
		space:    make(chan struct{}),
		onWait:   onWait,
	}
}

// Push admits env according to policy.
// Under DropNew a full queue yields domain.ErrQueueFull. Under DropOldest
// the head is evicted; when retries left the queue over capacity, eviction
// alone cannot make room and Push blocks like Block does.
func (q *queue) Push(ctx context.Context, env *domain.Envelope, policy BackpressurePolicy) (pushResult, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return pushResult{}, domain.ErrShuttingDown
		}

		if q.capacity <= 0 || len(q.items) < q.capacity {
			res := q.appendLocked(env)
			q.mu.Unlock()
			return res, nil
		}

		switch {
		case policy == DropNew:
			q.mu.Unlock()
			return pushResult{}, domain.ErrQueueFull

		case policy == DropOldest && len(q.items) == q.capacity:
			evicted := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.bytes -= evicted.Size
			res := q.appendLocked(env)
			res.evicted = evicted
			q.mu.Unlock()
			return res, nil
		}

		space := q.space
		q.mu.Unlock()

		if q.onWait != nil {
			q.onWait()
		}

		select {
		case <-ctx.Done():
			return pushResult{}, ctx.Err()
		case <-space:
		}
	}
}

func (q *queue) appendLocked(env *domain.Envelope) pushResult {
	q.items = append(q.items, env)
	q.bytes += env.Size
	return pushResult{count: len(q.items), bytes: q.bytes}
}

// Drain removes and returns every queued envelope and wakes blocked pushers.
func (q *queue) Drain() []*domain.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	q.bytes = 0
	q.broadcastLocked()
	return items
}

// Requeue puts envs back at the head in order. It ignores capacity so
// retries are never lost, and works after Close.
func (q *queue) Requeue(envs []*domain.Envelope) {
	if len(envs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]*domain.Envelope, 0, len(envs)+len(q.items))
	items = append(items, envs...)
	q.items = append(items, q.items...)
	q.bytes += domain.TotalSize(envs)
}

// Len returns the number of queued envelopes.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bytes returns the summed size of queued envelopes.
func (q *queue) Bytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Close makes every current and future Push fail with ErrShuttingDown.
func (q *queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.broadcastLocked()
}

func (q *queue) broadcastLocked() {
	close(q.space)
	q.space = make(chan struct{})
}
