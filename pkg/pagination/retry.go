package pagination

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for page retries.
var (
	diveRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dive_retries_total",
		Help: "Total number of page retry attempts by error kind",
	}, []string{"kind"})

	diveRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dive_retry_backoff_seconds",
		Help:    "Backoff duration before page retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	diveRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dive_retry_exhausted_total",
		Help: "Total number of pages whose retry budget was exhausted",
	})
)

// RetryPolicy bounds and shapes per-page retries.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Zero disables retries.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps exponential backoff growth.
	MaxBackoff time.Duration

	// Multiplier grows the backoff between consecutive retries.
	Multiplier float64
}

// DefaultRetryPolicy returns the default per-page retry behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
	}
}

// normalized fills unusable fields with defaults, leaving MaxRetries
// untouched since zero is a valid choice there.
func (p RetryPolicy) normalized() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaults.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaults.MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaults.Multiplier
	}
	return p
}

// jittered spreads d by ±20% so concurrent fetches do not retry in lockstep.
func jittered(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}
