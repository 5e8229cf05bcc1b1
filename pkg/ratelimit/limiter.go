package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	igdbRateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igdb_rate_limit_waits_total",
		Help: "Total number of requests delayed by the rate limiter by scope",
	}, []string{"scope"})

	igdbRateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "igdb_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the rate limiter by scope",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"scope"})

	igdbRateLimitWindowRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "igdb_rate_limit_window_requests",
		Help: "Requests counted in the current shared one-second window",
	})
)

// Limiter gates outgoing IGDB requests.
type Limiter struct {
	local  *rate.Limiter
	redis  *redis.Client
	limit  int
	logger zerolog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter admitting requestsPerSecond requests per
// second, with bursts of the same size. redisClient may be nil, in which
// case only the process-local bucket applies.
func NewLimiter(redisClient *redis.Client, requestsPerSecond int, logger zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	return &Limiter{
		local:  rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		redis:  redisClient,
		limit:  requestsPerSecond,
		logger: logger,
		now:    time.Now,
	}
}

// Limit returns the configured requests per second.
func (l *Limiter) Limit() int {
	return l.limit
}

// Shared reports whether the limiter coordinates through Redis.
func (l *Limiter) Shared() bool {
	return l.redis != nil
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.waitLocal(ctx); err != nil {
		return err
	}
	if l.redis == nil {
		return nil
	}
	return l.waitShared(ctx)
}

func (l *Limiter) waitLocal(ctx context.Context) error {
	r := l.local.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate limiter cannot admit request")
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	igdbRateLimitWaitsTotal.WithLabelValues("local").Inc()
	igdbRateLimitWaitSeconds.WithLabelValues("local").Observe(delay.Seconds())
	l.logger.Debug().Dur("delay", delay).Msg("Throttling request (local limit)")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitShared claims a slot in the current shared window, sleeping into the
// next window while the current one is exhausted.
func (l *Limiter) waitShared(ctx context.Context) error {
	start := l.now()
	for {
		state, err := l.acquire(ctx)
		if err != nil {
			return fmt.Errorf("shared rate limit: %w", err)
		}
		if !state.Exhausted() {
			if waited := l.now().Sub(start); waited > 0 && state.Start.After(start) {
				igdbRateLimitWaitSeconds.WithLabelValues("shared").Observe(waited.Seconds())
			}
			return nil
		}

		delay := state.TimeUntilReset(l.now())
		igdbRateLimitWaitsTotal.WithLabelValues("shared").Inc()
		l.logger.Debug().
			Int64("window_requests", state.Count).
			Int("limit", state.Limit).
			Dur("delay", delay).
			Msg("Throttling request (shared limit)")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// acquire counts one request against the current window.
func (l *Limiter) acquire(ctx context.Context) (WindowState, error) {
	now := l.now()
	key := windowKey(now)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, windowTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return WindowState{}, fmt.Errorf("increment window counter: %w", err)
	}

	state := WindowState{
		Start: windowStart(now),
		Count: incr.Val(),
		Limit: l.limit,
	}
	igdbRateLimitWindowRequests.Set(float64(state.Count))
	return state, nil
}

// State returns the shared window containing the current time. Without
// Redis it reports an empty window.
func (l *Limiter) State(ctx context.Context) (WindowState, error) {
	now := l.now()
	state := WindowState{Start: windowStart(now), Limit: l.limit}
	if l.redis == nil {
		return state, nil
	}

	count, err := l.redis.Get(ctx, windowKey(now)).Int64()
	if err != nil && err != redis.Nil {
		return WindowState{}, fmt.Errorf("get window counter: %w", err)
	}
	state.Count = count
	return state, nil
}
