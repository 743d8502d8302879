// Package ratelimit paces outbound operations against a rate-limited upstream.
//
// A Limiter guarantees a minimum spacing between consecutive Acquire returns
// across every caller sharing it. It is a soft pacing mechanism: it never
// fails on its own, it only delays, and the only error Acquire can return is
// the caller's context being done.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	limiterAcquiresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_rate_limit_acquires_total",
		Help: "Total number of acquired request slots by limiter",
	}, []string{"limiter"})

	limiterWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collector_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a request slot by limiter",
		Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"limiter"})
)

// Limiter enforces a minimum delay between dispatched operations.
type Limiter struct {
	name    string
	delay   time.Duration
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu        sync.Mutex
	holdUntil time.Time
}

// New creates a limiter that spaces Acquire returns at least delay apart.
// A zero or negative delay yields a limiter that never waits.
func New(name string, delay time.Duration, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if delay < 0 {
		delay = 0
	}

	// Burst 1: tokens never accumulate, so two slots are never closer than delay.
	return &Limiter{
		name:    name,
		delay:   delay,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("limiter", name).Logger(),
	}
}

// Delay returns the configured minimum spacing.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// Acquire blocks until the caller may dispatch its operation. Callers are
// served in the order their calls arrive.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.waitHold(ctx); err != nil {
		return err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		// Wait also fails early when the deadline cannot be met; report the
		// context's own error when it is already done.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	waited := time.Since(start)
	limiterAcquiresTotal.WithLabelValues(l.name).Inc()
	limiterWaitSeconds.WithLabelValues(l.name).Observe(waited.Seconds())

	if waited > 0 {
		l.logger.Debug().Dur("waited", waited).Msg("Request slot acquired")
	}
	return nil
}
