package app

import (
	"context"
	"time"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/pkg/log"
)

// DefaultFlushInterval is the default period of timer-driven flushes.
const DefaultFlushInterval = 5 * time.Second

type flushOutcome struct {
	result domain.IngestionResult
	err    error
}

// scheduler is the background goroutine that triggers flushes on a timer,
// on a threshold kick, and once more when stopped.
type scheduler struct {
	interval time.Duration
	flush    func(ctx context.Context) (domain.IngestionResult, error)
	logger   log.Logger

	kick chan struct{}
	stop chan struct{}

	// last receives the outcome of the final flush run on stop
	last chan flushOutcome
}

func newScheduler(interval time.Duration, flush func(ctx context.Context) (domain.IngestionResult, error), logger log.Logger) *scheduler {
	return &scheduler{
		interval: interval,
		flush:    flush,
		logger:   log.OrNoop(logger),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		last:     make(chan flushOutcome, 1),
	}
}

// Kick requests a flush without blocking. Kicks coalesce while one is pending.
func (s *scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop asks the loop to run one final flush and exit. Call at most once.
func (s *scheduler) Stop() {
	close(s.stop)
}

// run is the scheduler loop. time.Ticker drops ticks a slow flush missed,
// so a long flush never causes a burst of back-to-back flushes.
func (s *scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			res, err := s.flush(ctx)
			s.last <- flushOutcome{result: res, err: err}
			return
		case <-ticker.C:
			s.flushOnce(ctx, "interval")
		case <-s.kick:
			s.flushOnce(ctx, "threshold")
		}
	}
}

func (s *scheduler) flushOnce(ctx context.Context, trigger string) {
	res, err := s.flush(ctx)
	if err != nil {
		s.logger.Error("background flush failed",
			log.String("trigger", trigger),
			log.Err(err),
		)
		return
	}
	if res.SuccessCount+res.FailureCount > 0 {
		s.logger.Debug("background flush",
			log.String("trigger", trigger),
			log.Int("succeeded", res.SuccessCount),
			log.Int("failed", res.FailureCount),
		)
	}
}
