package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dariaag/dive-go/pkg/archive"
	"github.com/dariaag/dive-go/pkg/query"
	"github.com/dariaag/dive-go/pkg/ratelimit"
)

// Prometheus metrics for range scheduling.
var (
	divePagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dive_pages_total",
		Help: "Total number of pages fetched successfully",
	})

	diveBlocksFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dive_blocks_fetched_total",
		Help: "Total number of blocks covered by fetched pages",
	})
)

// PageFetcher issues one gateway request for one sub-range and classifies
// failures into archive error kinds. Implementations must not retry
// internally; the scheduler owns the retry budget.
type PageFetcher interface {
	// FetchPage fetches records for the half-open range [from, to).
	FetchPage(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error)
}

// FetchPageFunc adapts a function to the PageFetcher interface.
type FetchPageFunc func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error)

// FetchPage implements PageFetcher.
func (f FetchPageFunc) FetchPage(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
	return f(ctx, q, from, to)
}

// Scheduler advances one block cursor across a requested range, fetching
// page after page through the shared gate and limiter. A Scheduler serves
// one FetchRange call at a time; the gate and limiter may be shared by any
// number of schedulers.
type Scheduler struct {
	fetcher PageFetcher
	gate    *ratelimit.Gate
	limiter *ratelimit.Limiter
	policy  RetryPolicy
	logger  zerolog.Logger

	state atomic.Int32
}

// NewScheduler creates a scheduler over the given fetcher and shared
// primitives. Unusable policy fields fall back to defaults.
func NewScheduler(fetcher PageFetcher, gate *ratelimit.Gate, limiter *ratelimit.Limiter, policy RetryPolicy, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		gate:    gate,
		limiter: limiter,
		policy:  policy.normalized(),
		logger:  logger,
	}
}

// State reports the scheduler's current position in the fetch loop.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

type fetchResult struct {
	page *archive.Page
	err  error
}

// FetchRange fetches the half-open range [start, end) and returns its
// blocks in ascending order. The result order is identical to a sequential
// fetch for every gate capacity and limiter rate.
func (s *Scheduler) FetchRange(ctx context.Context, q *query.Query, start, end uint64) ([]archive.Block, error) {
	if start > end {
		s.setState(StateFailed)
		return nil, &archive.FetchError{
			Kind:    archive.KindInvalidRange,
			Message: fmt.Sprintf("start %d > end %d", start, end),
		}
	}
	if start == end {
		s.setState(StateDone)
		return nil, nil
	}

	began := time.Now()
	var out []archive.Block
	var pending *archive.Page
	cursor := start
	pages := 0

	for cursor < end {
		results := make(chan fetchResult, 1)
		go func(from uint64) {
			page, err := s.fetchPage(ctx, q, from, end)
			results <- fetchResult{page: page, err: err}
		}(cursor)

		// Merge the previous page while the next request is in flight.
		if pending != nil {
			out = append(out, pending.Blocks...)
			pending = nil
		}

		res := <-results
		if res.err != nil {
			s.setState(StateFailed)
			s.logger.Error().
				Err(res.err).
				Uint64("from_block", cursor).
				Uint64("end_block", end).
				Msg("Range fetch failed")
			return nil, res.err
		}

		page := res.page
		if page.NextBlock <= cursor || page.NextBlock > end {
			s.setState(StateFailed)
			return nil, &archive.FetchError{
				Kind:    archive.KindProtocolViolation,
				Block:   cursor,
				Message: fmt.Sprintf("next block %d outside progress window (%d, %d]", page.NextBlock, cursor, end),
			}
		}

		pages++
		divePagesTotal.Inc()
		diveBlocksFetchedTotal.Add(float64(page.BlockCount()))
		cursor = page.NextBlock
		pending = page
	}

	if pending != nil {
		out = append(out, pending.Blocks...)
	}

	s.setState(StateDone)
	s.logger.Info().
		Uint64("from_block", start).
		Uint64("to_block", end).
		Int("pages", pages).
		Int("blocks", len(out)).
		Dur("duration", time.Since(began)).
		Msg("Range fetch complete")
	return out, nil
}

// fetchPage runs the per-attempt permit/token/request cycle until the page
// succeeds, a non-retryable error surfaces, or the retry budget runs out.
func (s *Scheduler) fetchPage(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
	var lastErr error
	backoff := s.policy.InitialBackoff

	for attempt := 1; attempt <= s.policy.MaxRetries+1; attempt++ {
		s.setState(StateAwaitingPermit)
		release, err := s.gate.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrContextCancelled, err)
		}

		s.setState(StateAwaitingToken)
		if err := s.limiter.Wait(ctx); err != nil {
			release()
			return nil, fmt.Errorf("%w: %v", archive.ErrContextCancelled, err)
		}

		s.setState(StateFetching)
		page, err := s.fetcher.FetchPage(ctx, q, from, to)
		release()

		if err == nil {
			if attempt > 1 {
				s.logger.Info().
					Uint64("from_block", from).
					Int("attempt", attempt).
					Msg("Page fetch succeeded after retry")
			}
			return page, nil
		}
		lastErr = err

		if !archive.IsRetryable(err) {
			return nil, err
		}

		var fe *archive.FetchError
		if errors.As(err, &fe) && fe.Status == http.StatusTooManyRequests {
			s.limiter.Penalize()
		}

		if attempt > s.policy.MaxRetries {
			break
		}

		diveRetriesTotal.WithLabelValues(string(archive.KindOf(err))).Inc()

		delay := jittered(backoff)
		if fe != nil && fe.RetryAfter > delay {
			delay = fe.RetryAfter
		}
		diveRetryBackoffSeconds.Observe(delay.Seconds())

		s.setState(StateRetrying)
		s.logger.Debug().
			Err(err).
			Uint64("from_block", from).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying page after backoff")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", archive.ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * s.policy.Multiplier)
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}

	diveRetryExhaustedTotal.Inc()
	s.logger.Warn().
		Uint64("from_block", from).
		Int("max_retries", s.policy.MaxRetries).
		Msg("Page retry budget exhausted")

	return nil, &archive.FetchError{
		Kind:    archive.KindRetriesExhausted,
		Block:   from,
		Message: fmt.Sprintf("page retry budget exceeded for range [%d, %d)", from, to),
		Err:     fmt.Errorf("%w after %d attempts: %v", archive.ErrRetriesExhausted, s.policy.MaxRetries+1, lastErr),
	}
}
