package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var limiterHoldsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "collector_rate_limit_holds_total",
	Help: "Total number of upstream-requested pauses by limiter",
}, []string{"limiter"})

// MaxHold caps a single upstream-requested pause.
const MaxHold = 5 * time.Minute

// Hold blocks every Acquire on l until the given time. Overlapping holds
// keep the later deadline. Holds longer than MaxHold are shortened.
func (l *Limiter) Hold(until time.Time) {
	if limit := time.Now().Add(MaxHold); until.After(limit) {
		until = limit
	}

	l.mu.Lock()
	extended := until.After(l.holdUntil)
	if extended {
		l.holdUntil = until
	}
	l.mu.Unlock()

	if extended {
		limiterHoldsTotal.WithLabelValues(l.name).Inc()
		l.logger.Warn().Time("until", until).Msg("Upstream asked to slow down, holding requests")
	}
}

// HeldUntil returns the current hold deadline, zero if none was set.
func (l *Limiter) HeldUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holdUntil
}

func (l *Limiter) waitHold(ctx context.Context) error {
	for {
		wait := time.Until(l.HeldUntil())
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RetryAfter parses a Retry-After header given either as delay seconds or as
// an HTTP date. It returns false when the header is absent or malformed.
func RetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
