package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/traceship/internal/batch"
	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
)

// Default batching configuration values.
const (
	DefaultMaxEvents    = 100
	DefaultMaxBytes     = 3_500_000
	DefaultMaxQueueSize = 10_000
)

// Config contains configuration for the batcher.
type Config struct {
	// MaxEvents bounds events per chunk and triggers a flush when reached
	MaxEvents int

	// MaxBytes bounds bytes per chunk and triggers a flush when reached.
	// A single event larger than this is rejected by Add.
	MaxBytes int

	FlushInterval time.Duration

	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	RetryJitter       bool

	// FailFast aborts a flush on the first chunk that fails for good
	FailFast bool

	MaxQueueSize int
	Backpressure BackpressurePolicy

	// SettleTimeout bounds how long Shutdown waits for the scheduler
	SettleTimeout time.Duration
}

// DefaultConfig returns the default batcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxEvents:         DefaultMaxEvents,
		MaxBytes:          DefaultMaxBytes,
		FlushInterval:     DefaultFlushInterval,
		MaxRetries:        DefaultMaxRetries,
		InitialRetryDelay: DefaultInitialRetryDelay,
		MaxRetryDelay:     DefaultMaxRetryDelay,
		RetryJitter:       true,
		MaxQueueSize:      DefaultMaxQueueSize,
		Backpressure:      Block,
		SettleTimeout:     SettleTimeout,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch {
	case c.MaxEvents <= 0:
		return fmt.Errorf("%w: max events must be positive", domain.ErrInvalidConfig)
	case c.MaxBytes <= 0:
		return fmt.Errorf("%w: max bytes must be positive", domain.ErrInvalidConfig)
	case c.MaxBytes > domain.ServerMaxRequestBytes:
		return fmt.Errorf("%w: max bytes %d exceeds the server limit of %d", domain.ErrInvalidConfig, c.MaxBytes, domain.ServerMaxRequestBytes)
	case c.FlushInterval <= 0:
		return fmt.Errorf("%w: flush interval must be positive", domain.ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", domain.ErrInvalidConfig)
	case c.InitialRetryDelay < 0 || c.MaxRetryDelay < c.InitialRetryDelay:
		return fmt.Errorf("%w: retry delays must satisfy 0 <= initial <= max", domain.ErrInvalidConfig)
	case c.MaxQueueSize <= 0:
		return fmt.Errorf("%w: max queue size must be positive", domain.ErrInvalidConfig)
	case c.Backpressure < Block || c.Backpressure > DropOldest:
		return fmt.Errorf("%w: unknown backpressure policy %d", domain.ErrInvalidConfig, c.Backpressure)
	}
	return nil
}

// SendEventEmitter is called on chunk and flush outcomes.
type SendEventEmitter interface {
	OnChunkSent(events, bytes int, duration time.Duration)
	OnChunkError(err error, events int, retryable bool)
	OnFlush(result domain.IngestionResult, err error)
}

// Batcher collects events and ships them in chunks through a BatchSender.
// Add, Flush, Metrics and Shutdown are safe for concurrent use.
type Batcher struct {
	cfg       Config
	sender    ports.BatchSender
	logger    log.Logger
	emitter   SendEventEmitter
	lifecycle *Lifecycle
	metrics   *Metrics
	queue     *queue
	retrier   *retrier
	scheduler *scheduler

	// flushMu serializes flush sweeps
	flushMu sync.Mutex

	newID func() string
}

// NewBatcher validates cfg and starts the background scheduler.
// stateEmitter and sendEmitter may be nil.
func NewBatcher(cfg Config, sender ports.BatchSender, logger log.Logger, stateEmitter EventEmitter, sendEmitter SendEventEmitter) (*Batcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender is required", domain.ErrInvalidConfig)
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = SettleTimeout
	}

	logger = log.OrNoop(logger)
	b := &Batcher{
		cfg:       cfg,
		sender:    sender,
		logger:    logger,
		emitter:   sendEmitter,
		lifecycle: NewLifecycle(logger, stateEmitter),
		metrics:   &Metrics{},
		newID:     uuid.NewString,
	}
	b.retrier = newRetrier(cfg, b.metrics, logger)
	b.scheduler = newScheduler(cfg.FlushInterval, b.Flush, logger)
	b.queue = newQueue(cfg.MaxQueueSize, b.scheduler.Kick)

	ctx, cancel := context.WithCancel(context.Background())
	b.lifecycle.SetCancel(cancel)
	b.lifecycle.AddWorker()
	go func() {
		defer b.lifecycle.WorkerDone()
		b.scheduler.run(ctx)
	}()

	if err := b.lifecycle.TransitionTo(StateRunning, "batcher started"); err != nil {
		cancel()
		return nil, err
	}
	return b, nil
}

// Add wraps ev in an envelope and admits it to the queue.
// ctx only bounds the wait under the Block policy.
func (b *Batcher) Add(ctx context.Context, ev domain.Event) error {
	if !b.lifecycle.Accepting() {
		return domain.ErrShuttingDown
	}

	env, err := domain.NewEnvelope(ev, b.newID)
	if err != nil {
		return err
	}
	if env.Size > b.cfg.MaxBytes {
		return &domain.BatchSizeError{Size: env.Size, MaxSize: b.cfg.MaxBytes}
	}

	res, err := b.queue.Push(ctx, env, b.cfg.Backpressure)
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			b.metrics.dropped.Add(1)
			b.logger.Warn("queue full, event dropped",
				log.String("id", env.ID),
				log.String("policy", b.cfg.Backpressure.String()),
			)
		}
		return err
	}

	if res.evicted != nil {
		b.metrics.dropped.Add(1)
		b.metrics.queued.Add(-1)
		b.logger.Warn("queue full, oldest event dropped",
			log.String("id", res.evicted.ID),
		)
	}
	b.metrics.queued.Add(1)

	if res.count >= b.cfg.MaxEvents || res.bytes >= b.cfg.MaxBytes {
		b.scheduler.Kick()
	}
	return nil
}

// Metrics returns a point-in-time copy of the counters.
func (b *Batcher) Metrics() domain.MetricsSnapshot {
	return b.metrics.Snapshot()
}

// State returns the lifecycle state.
func (b *Batcher) State() State {
	return b.lifecycle.State()
}

// Flush sends everything queued right now.
// Retryable per-event failures with budget left are re-queued and also
// listed in the result with Retryable set. An Auth failure, or any final
// failure with FailFast, aborts the sweep: the result so far is returned
// together with the error and unsent chunks go back to the queue.
func (b *Batcher) Flush(ctx context.Context) (domain.IngestionResult, error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	res, err := b.flushLocked(ctx)
	if b.emitter != nil && (res.SuccessCount+res.FailureCount > 0 || err != nil) {
		b.emitter.OnFlush(res, err)
	}
	return res, err
}

func (b *Batcher) flushLocked(ctx context.Context) (domain.IngestionResult, error) {
	// Add bumps queued only after its push lands, so subtract what was
	// drained instead of resetting to zero
	envs := b.queue.Drain()
	b.metrics.queued.Add(-int64(len(envs)))

	var result domain.IngestionResult
	if len(envs) == 0 {
		return result, nil
	}

	pending := batch.NewPending(batch.Split(envs, b.cfg.MaxBytes, b.cfg.MaxEvents))
	var staged []*domain.Envelope

	for {
		chunk, ok := pending.Next()
		if !ok {
			break
		}

		start := time.Now()
		res, err := b.retrier.Do(ctx, len(chunk), func(ctx context.Context) (domain.IngestionResult, error) {
			return b.sender.Send(ctx, chunk)
		})

		if err == nil {
			if b.emitter != nil {
				b.emitter.OnChunkSent(len(chunk), domain.TotalSize(chunk), time.Since(start))
			}
			staged = append(staged, b.reconcile(chunk, res, &result)...)
			continue
		}

		if first, second, ok := splitTooLarge(err, chunk); ok {
			b.logger.Info("chunk too large, halving",
				log.Int("events", len(chunk)),
				log.Int("bytes", domain.TotalSize(chunk)),
			)
			pending.PushFront(first, second)
			continue
		}

		b.metrics.markError(time.Now())
		if b.emitter != nil {
			b.emitter.OnChunkError(err, len(chunk), domain.IsRetryable(err))
		}

		if ctx.Err() != nil {
			// cancelled mid-sweep: nothing in this chunk was resolved
			back := append(staged, chunk...)
			b.requeue(append(back, pending.Drain()...))
			return result, fmt.Errorf("flush interrupted: %w (last error: %w)", ctx.Err(), err)
		}

		b.failChunk(chunk, err, &result)

		if domain.IsAuth(err) || b.cfg.FailFast {
			rest := pending.Drain()
			b.logger.Error("flush aborted",
				log.Err(err),
				log.Int("failed", len(chunk)),
				log.Int("requeued", len(rest)),
			)
			b.requeue(append(staged, rest...))
			return result, err
		}

		b.logger.Error("chunk failed",
			log.Err(err),
			log.Int("events", len(chunk)),
		)
	}

	b.requeue(staged)
	return result, nil
}

// reconcile folds one chunk outcome into result and returns the envelopes
// that should be retried in a later sweep.
func (b *Batcher) reconcile(chunk []*domain.Envelope, res domain.IngestionResult, result *domain.IngestionResult) []*domain.Envelope {
	result.AddSuccess(res.SuccessIDs...)
	b.metrics.flushed.Add(int64(len(res.SuccessIDs)))

	if len(res.Failures) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Envelope, len(chunk))
	for _, env := range chunk {
		byID[env.ID] = env
	}

	var retry []*domain.Envelope
	for _, f := range res.Failures {
		result.AddFailure(f)

		env := byID[f.EventID]
		if f.Retryable && env != nil && env.RetryCount < b.cfg.MaxRetries {
			env.RetryCount++
			retry = append(retry, env)
			b.metrics.retries.Add(1)
			continue
		}
		b.metrics.failed.Add(1)
	}

	b.metrics.markError(time.Now())
	b.logger.Warn("partial chunk failure",
		log.Int("succeeded", len(res.SuccessIDs)),
		log.Int("failed", len(res.Failures)),
		log.Int("retrying", len(retry)),
	)
	return retry
}

// failChunk records every envelope of chunk as a terminal failure.
func (b *Batcher) failChunk(chunk []*domain.Envelope, err error, result *domain.IngestionResult) {
	code := ""
	var ie *domain.IngestError
	if errors.As(err, &ie) && ie.Status != 0 {
		code = strconv.Itoa(ie.Status)
	}

	for _, env := range chunk {
		result.AddFailure(domain.EventError{
			EventID: env.ID,
			Message: err.Error(),
			Code:    code,
		})
	}
	b.metrics.failed.Add(int64(len(chunk)))
}

func (b *Batcher) requeue(envs []*domain.Envelope) {
	if len(envs) == 0 {
		return
	}
	b.queue.Requeue(envs)
	b.metrics.queued.Add(int64(len(envs)))
}

// splitTooLarge halves chunk when the server rejected it as too large.
func splitTooLarge(err error, chunk []*domain.Envelope) (first, second []*domain.Envelope, ok bool) {
	var ie *domain.IngestError
	if !errors.As(err, &ie) || ie.Kind != domain.KindClient || ie.Status != 413 {
		return nil, nil, false
	}
	return batch.Halve(chunk)
}

// Shutdown stops admission, lets the scheduler run its last flush, then
// flushes whatever is left and returns the merged result. It is idempotent:
// later calls only flush.
func (b *Batcher) Shutdown(ctx context.Context) (domain.IngestionResult, error) {
	if err := b.lifecycle.TransitionTo(StateStopping, "shutdown requested"); err != nil {
		return b.Flush(ctx)
	}

	b.queue.Close()
	b.scheduler.Stop()

	if err := b.lifecycle.WaitWithTimeout(b.cfg.SettleTimeout); err != nil {
		// abort retry waits and in-flight requests; their chunks are requeued
		b.lifecycle.Cancel()
		_ = b.lifecycle.WaitWithTimeout(b.cfg.SettleTimeout)
	}
	b.lifecycle.Cancel()

	var (
		total domain.IngestionResult
		errs  []error
	)
	select {
	case last := <-b.scheduler.last:
		total.Merge(last.result)
		if last.err != nil && !errors.Is(last.err, context.Canceled) {
			errs = append(errs, last.err)
		}
	default:
	}

	res, err := b.Flush(ctx)
	total.Supersede(res)
	if err != nil {
		errs = append(errs, err)
	}

	_ = b.lifecycle.TransitionTo(StateStopped, "shutdown complete")

	snap := b.metrics.Snapshot()
	b.logger.Info("batcher stopped",
		log.Int("succeeded", total.SuccessCount),
		log.Int("failed", total.FailureCount),
		log.Int64("flushed_total", snap.Flushed),
		log.Int64("dropped_total", snap.Dropped),
		log.Int("left_queued", b.queue.Len()),
		log.Int("left_bytes", b.queue.Bytes()),
	)

	return total, errors.Join(errs...)
}
