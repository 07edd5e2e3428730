package ratelimit

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var diveInflightRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dive_inflight_requests",
	Help: "Number of page requests currently holding a concurrency permit",
})

// Gate bounds the number of simultaneously outstanding page requests with a
// counting permit pool. Permits are scoped: Acquire returns a release func
// that is safe to call more than once and must run on every exit path.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
}

// NewGate creates a gate admitting max concurrent holders. max below 1 is
// clamped to 1.
func NewGate(max int) *Gate {
	if max < 1 {
		max = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(max)),
		capacity: int64(max),
	}
}

// Acquire blocks until a permit is free or ctx is cancelled.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	diveInflightRequests.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.sem.Release(1)
			diveInflightRequests.Dec()
		})
	}, nil
}

// Capacity returns the permit pool size.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}
