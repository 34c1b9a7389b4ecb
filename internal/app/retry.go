package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/pkg/log"
)

// Default retry configuration values.
const (
	DefaultInitialRetryDelay = 100 * time.Millisecond
	DefaultMaxRetryDelay     = 30 * time.Second
	DefaultMaxRetries        = 3
)

// jitterFraction bounds the random extra delay added on top of the backoff.
const jitterFraction = 0.25

// backoff implements capped exponential backoff with optional jitter.
type backoff struct {
	max     time.Duration
	current time.Duration
	jitter  bool
	rand    func() float64
}

// newBackoff creates a new backoff with the given initial and max durations.
func newBackoff(initial, max time.Duration, jitter bool) *backoff {
	return &backoff{
		max:     max,
		current: initial,
		jitter:  jitter,
		rand:    rand.Float64,
	}
}

// Next returns the delay before the next attempt and doubles the base for
// the one after. A suggested delay larger than the computed one wins.
func (b *backoff) Next(hint time.Duration) time.Duration {
	d := b.current
	if b.jitter {
		d += time.Duration(float64(d) * jitterFraction * b.rand())
	}
	if hint > d {
		d = hint
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// sendFunc performs one transmission attempt.
type sendFunc func(ctx context.Context) (domain.IngestionResult, error)

// retrier drives a send through the retry state machine:
// one initial attempt plus up to maxRetries resends of retryable failures.
type retrier struct {
	maxRetries int
	initial    time.Duration
	max        time.Duration
	jitter     bool

	metrics *Metrics
	logger  log.Logger

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

func newRetrier(cfg Config, metrics *Metrics, logger log.Logger) *retrier {
	return &retrier{
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialRetryDelay,
		max:        cfg.MaxRetryDelay,
		jitter:     cfg.RetryJitter,
		metrics:    metrics,
		logger:     log.OrNoop(logger),
		sleep:      sleepContext,
		rand:       rand.Float64,
	}
}

// Do calls send until it succeeds, fails with a non-retryable error, or
// the retry budget is spent. The last error is returned as is. If ctx is
// cancelled while waiting, the last send error is returned and the caller
// can tell the two apart through ctx.Err().
func (r *retrier) Do(ctx context.Context, events int, send sendFunc) (domain.IngestionResult, error) {
	b := newBackoff(r.initial, r.max, r.jitter)
	b.rand = r.rand

	for attempt := 0; ; attempt++ {
		res, err := send(ctx)
		if err == nil {
			return res, nil
		}
		if !domain.IsRetryable(err) || attempt >= r.maxRetries || ctx.Err() != nil {
			return res, err
		}

		delay := b.Next(domain.SuggestedDelay(err))
		r.metrics.retries.Add(1)
		r.logger.Warn("retrying chunk",
			log.Err(err),
			log.Int("attempt", attempt+1),
			log.Int("events", events),
			log.Duration("delay", delay),
		)

		if serr := r.sleep(ctx, delay); serr != nil {
			return res, err
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
