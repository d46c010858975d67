package sessioncore

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KPpay-project/sessioncore/internal/backoff"
)

// refreshScheduler proactively refreshes the access token shortly before
// it expires, so navigation checks rarely observe an expired-but-not-yet-
// refreshed session.
//
// Each ScheduleAt or Stop bumps a generation counter; timers fired under
// an older generation return without acting, which is what cancels a
// pending retry chain on logout.
type refreshScheduler struct {
	margin     time.Duration
	timeout    time.Duration
	maxRetries int
	policy     backoff.Policy

	refresh func(context.Context) error
	now     func() time.Time
	log     *zap.Logger
	metrics *Metrics

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newRefreshScheduler(cfg RefreshConfig, refresh func(context.Context) error, now func() time.Time, log *zap.Logger, metrics *Metrics) *refreshScheduler {
	return &refreshScheduler{
		margin:     cfg.SafetyMargin,
		timeout:    cfg.CallTimeout,
		maxRetries: cfg.MaxRetries,
		policy: backoff.Policy{
			Initial: cfg.RetryBackoff,
			Max:     cfg.RetryBackoffMax,
			Jitter:  cfg.RetryJitter,
		},
		refresh: refresh,
		now:     now,
		log:     log,
		metrics: metrics,
	}
}

// ScheduleAt arms a single-shot wake-up at expiresAt minus the safety
// margin, replacing any pending timer.
func (s *refreshScheduler) ScheduleAt(expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen

	if s.timer != nil {
		s.timer.Stop()
	}

	delay := expiresAt.Sub(s.now()) - s.margin
	if delay < 0 {
		delay = 0
	}

	s.timer = time.AfterFunc(delay, func() { s.fire(gen, 0) })
}

// Stop cancels the pending timer and invalidates any in-progress retry
// chain.
func (s *refreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *refreshScheduler) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *refreshScheduler) fire(gen uint64, attempt int) {
	if !s.live(gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	err := s.refresh(ctx)
	cancel()

	if err == nil {
		// The manager rescheduled against the new expiry.
		return
	}

	if !errors.Is(err, ErrBackendUnreachable) {
		// Terminal for this schedule: the next guard check surfaces it.
		s.log.Warn("scheduled refresh gave up", zap.Error(err))
		return
	}

	if attempt >= s.maxRetries {
		s.log.Warn("scheduled refresh retries exhausted",
			zap.Int("attempts", attempt+1), zap.Error(err))
		return
	}

	delay := s.policy.Delay(attempt)
	s.metrics.Inc(MetricRefreshRetry)
	s.log.Warn("scheduled refresh failed, retrying",
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.timer = time.AfterFunc(delay, func() { s.fire(gen, attempt+1) })
}
