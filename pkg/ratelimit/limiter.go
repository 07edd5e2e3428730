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
	diveRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dive_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: prometheus.DefBuckets,
	})

	diveRateLimitPenaltiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dive_rate_limit_penalties_total",
		Help: "Total number of adaptive rate penalties applied after server throttling",
	})

	diveEffectiveRateLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dive_effective_rate_limit",
		Help: "Current effective request rate in requests per second",
	})
)

// Adaptive throttle tuning.
const (
	// MinAdaptiveRate is the floor the effective rate can be penalized down to.
	MinAdaptiveRate = 0.1 // requests per second

	// RecoveryInterval is how long the limiter must run without further
	// penalties before the configured base rate is restored.
	RecoveryInterval = 30 * time.Second
)

// Limiter paces outbound requests with a shared token bucket. Wait delays
// until a token is available and fails only on context cancellation. When
// adaptive mode is enabled, Penalize halves the effective rate each time the
// server throttles, and the base rate comes back after RecoveryInterval
// without penalties.
type Limiter struct {
	bucket   *rate.Limiter
	base     rate.Limit
	burst    int
	adaptive bool
	logger   zerolog.Logger

	mu          sync.Mutex
	lastPenalty time.Time
}

// NewLimiter creates a limiter admitting perSecond sustained requests with
// the given burst capacity. perSecond <= 0 disables pacing entirely; burst
// below 1 is clamped to 1.
func NewLimiter(perSecond float64, burst int, adaptive bool, logger zerolog.Logger) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	l := &Limiter{
		bucket:   rate.NewLimiter(limit, burst),
		base:     limit,
		burst:    burst,
		adaptive: adaptive,
		logger:   logger,
	}
	if limit != rate.Inf {
		diveEffectiveRateLimit.Set(float64(limit))
	}
	return l
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.maybeRecover()

	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}
	diveRateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Penalize halves the effective rate in response to server throttling.
// No-op when adaptive mode is off or the limiter is unpaced.
func (l *Limiter) Penalize() {
	if !l.adaptive || l.base == rate.Inf {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastPenalty = time.Now()
	diveRateLimitPenaltiesTotal.Inc()

	current := l.bucket.Limit()
	next := current / 2
	if next < MinAdaptiveRate {
		next = MinAdaptiveRate
	}
	if next == current {
		return
	}

	l.bucket.SetLimit(next)
	diveEffectiveRateLimit.Set(float64(next))
	l.logger.Warn().
		Float64("rate", float64(next)).
		Float64("base_rate", float64(l.base)).
		Msg("Effective rate penalized after server throttle")
}

// maybeRecover restores the base rate once RecoveryInterval has passed
// without a penalty.
func (l *Limiter) maybeRecover() {
	if !l.adaptive {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastPenalty.IsZero() || l.bucket.Limit() == l.base {
		return
	}
	if time.Since(l.lastPenalty) < RecoveryInterval {
		return
	}

	l.bucket.SetLimit(l.base)
	l.lastPenalty = time.Time{}
	diveEffectiveRateLimit.Set(float64(l.base))
	l.logger.Info().
		Float64("rate", float64(l.base)).
		Msg("Effective rate restored after recovery interval")
}

// Limit returns the current effective rate in requests per second.
func (l *Limiter) Limit() float64 {
	return float64(l.bucket.Limit())
}

// Burst returns the configured burst capacity.
func (l *Limiter) Burst() int {
	return l.burst
}
