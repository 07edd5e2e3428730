package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/dariaag/dive-go/pkg/archive"
	"github.com/dariaag/dive-go/pkg/query"
	"github.com/dariaag/dive-go/pkg/ratelimit"
)

func testScheduler(f PageFetcher, maxConcurrency int, policy RetryPolicy) *Scheduler {
	return NewScheduler(
		f,
		ratelimit.NewGate(maxConcurrency),
		ratelimit.NewLimiter(0, 1, false, zerolog.Nop()),
		policy,
		zerolog.Nop(),
	)
}

func fastRetries(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// chunkPage covers [from, min(from+chunk, to)) with one log record per block.
func chunkPage(t *testing.T, from, to, chunk uint64) *archive.Page {
	t.Helper()

	limit := from + chunk
	if limit > to {
		limit = to
	}
	blocks := make([]archive.Block, 0, limit-from)
	for n := from; n < limit; n++ {
		blocks = append(blocks, archive.Block{
			Header: archive.BlockHeader{Number: n},
			Logs:   []archive.Record{{"logIndex": float64(0)}},
		})
	}

	page, err := archive.NewPage(blocks, from, to)
	if err != nil {
		t.Fatalf("chunkPage: %v", err)
	}
	return page
}

func blockNumbers(blocks []archive.Block) []uint64 {
	numbers := make([]uint64, len(blocks))
	for i, b := range blocks {
		numbers[i] = b.Header.Number
	}
	return numbers
}

func TestFetchRange_SinglePage(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		calls.Add(1)
		return chunkPage(t, from, to, to-from), nil
	})

	s := testScheduler(fetcher, 2, fastRetries(2))
	blocks, err := s.FetchRange(context.Background(), &query.Query{}, 100, 110)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher calls = %d, want 1", got)
	}
	if len(blocks) != 10 {
		t.Errorf("len(blocks) = %d, want 10", len(blocks))
	}
	if s.State() != StateDone {
		t.Errorf("State() = %s, want %s", s.State(), StateDone)
	}
}

func TestFetchRange_PartialCoverageAdvancesCursor(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var starts []uint64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		mu.Lock()
		starts = append(starts, from)
		mu.Unlock()
		return chunkPage(t, from, to, 3), nil
	})

	s := testScheduler(fetcher, 4, fastRetries(2))
	blocks, err := s.FetchRange(context.Background(), &query.Query{}, 0, 10)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	// 10 blocks in chunks of 3: requests start at 0, 3, 6, 9.
	wantStarts := []uint64{0, 3, 6, 9}
	mu.Lock()
	defer mu.Unlock()
	if len(starts) != len(wantStarts) {
		t.Fatalf("request starts = %v, want %v", starts, wantStarts)
	}
	for i, want := range wantStarts {
		if starts[i] != want {
			t.Errorf("request %d started at %d, want %d", i, starts[i], want)
		}
	}

	numbers := blockNumbers(blocks)
	for i, n := range numbers {
		if n != uint64(i) {
			t.Fatalf("blocks out of order: %v", numbers)
		}
	}
}

func TestFetchRange_EmptyRange(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		calls.Add(1)
		return chunkPage(t, from, to, to-from), nil
	})

	s := testScheduler(fetcher, 2, fastRetries(2))
	blocks, err := s.FetchRange(context.Background(), &query.Query{}, 500, 500)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	if len(blocks) != 0 {
		t.Errorf("len(blocks) = %d, want 0", len(blocks))
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("fetcher calls = %d, want 0 for empty range", got)
	}
	if s.State() != StateDone {
		t.Errorf("State() = %s, want %s", s.State(), StateDone)
	}
}

func TestFetchRange_InvalidRange(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		calls.Add(1)
		return nil, nil
	})

	s := testScheduler(fetcher, 2, fastRetries(2))
	_, err := s.FetchRange(context.Background(), &query.Query{}, 10, 5)
	if archive.KindOf(err) != archive.KindInvalidRange {
		t.Fatalf("KindOf(err) = %q, want %q (err = %v)", archive.KindOf(err), archive.KindInvalidRange, err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("fetcher calls = %d, want 0 before validation", got)
	}
}

func TestFetchRange_NoProgressIsProtocolViolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		calls.Add(1)
		// A page claiming the next uncovered block is the request start
		// denies progress and must not be retried forever.
		return &archive.Page{NextBlock: from}, nil
	})

	s := testScheduler(fetcher, 2, fastRetries(5))
	_, err := s.FetchRange(context.Background(), &query.Query{}, 100, 200)
	if archive.KindOf(err) != archive.KindProtocolViolation {
		t.Fatalf("KindOf(err) = %q, want %q (err = %v)", archive.KindOf(err), archive.KindProtocolViolation, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher calls = %d, want exactly 1 (no retry loop)", got)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %s, want %s", s.State(), StateFailed)
	}
}

func TestFetchRange_NextBeyondEndIsProtocolViolation(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		return &archive.Page{
			Blocks:    []archive.Block{{Header: archive.BlockHeader{Number: from}}},
			NextBlock: to + 50,
		}, nil
	})

	s := testScheduler(fetcher, 2, fastRetries(2))
	_, err := s.FetchRange(context.Background(), &query.Query{}, 100, 200)
	if archive.KindOf(err) != archive.KindProtocolViolation {
		t.Fatalf("KindOf(err) = %q, want %q (err = %v)", archive.KindOf(err), archive.KindProtocolViolation, err)
	}
}

func TestFetchRange_RetryTransparency(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		if calls.Add(1) == 1 {
			return nil, &archive.FetchError{
				Kind:    archive.KindRetryable,
				Status:  503,
				Block:   from,
				Message: "worker unavailable",
			}
		}
		return chunkPage(t, from, to, to-from), nil
	})

	s := testScheduler(fetcher, 2, fastRetries(3))
	blocks, err := s.FetchRange(context.Background(), &query.Query{}, 40, 44)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("fetcher calls = %d, want 2 (one failure, one retry)", got)
	}
	numbers := blockNumbers(blocks)
	want := []uint64{40, 41, 42, 43}
	for i, n := range want {
		if numbers[i] != n {
			t.Fatalf("blocks after retry = %v, want %v", numbers, want)
		}
	}
	if s.State() != StateDone {
		t.Errorf("State() = %s, want %s", s.State(), StateDone)
	}
}

func TestFetchRange_RetriesExhausted(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		calls.Add(1)
		return nil, &archive.FetchError{
			Kind:    archive.KindRetryable,
			Status:  502,
			Block:   from,
			Message: "bad gateway",
		}
	})

	const maxRetries = 2
	s := testScheduler(fetcher, 2, fastRetries(maxRetries))
	_, err := s.FetchRange(context.Background(), &query.Query{}, 0, 10)

	if archive.KindOf(err) != archive.KindRetriesExhausted {
		t.Fatalf("KindOf(err) = %q, want %q (err = %v)", archive.KindOf(err), archive.KindRetriesExhausted, err)
	}
	if !errors.Is(err, archive.ErrRetriesExhausted) {
		t.Error("errors.Is(err, ErrRetriesExhausted) should hold")
	}
	if got := calls.Load(); got != maxRetries+1 {
		t.Errorf("fetcher calls = %d, want %d (initial attempt plus retries)", got, maxRetries+1)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %s, want %s", s.State(), StateFailed)
	}
}

func TestFetchRange_FatalAbortsWithoutRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		if calls.Add(1) == 1 {
			return chunkPage(t, from, to, 5), nil
		}
		return nil, &archive.FetchError{
			Kind:    archive.KindFatal,
			Status:  400,
			Block:   from,
			Message: "malformed query",
		}
	})

	s := testScheduler(fetcher, 2, fastRetries(5))
	_, err := s.FetchRange(context.Background(), &query.Query{}, 0, 20)

	if archive.KindOf(err) != archive.KindFatal {
		t.Fatalf("KindOf(err) = %q, want %q (err = %v)", archive.KindOf(err), archive.KindFatal, err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fetcher calls = %d, want 2 (no retries after fatal)", got)
	}
}

func TestFetchRange_ThrottlePenalizesAdaptiveLimiter(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := ratelimit.NewLimiter(8, 8, true, zerolog.Nop())

	var calls atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		if calls.Add(1) == 1 {
			return nil, &archive.FetchError{
				Kind:       archive.KindRetryable,
				Status:     429,
				Block:      from,
				RetryAfter: time.Millisecond,
				Message:    "throttled",
			}
		}
		return chunkPage(t, from, to, to-from), nil
	})

	s := NewScheduler(fetcher, ratelimit.NewGate(2), limiter, fastRetries(3), zerolog.Nop())
	if _, err := s.FetchRange(context.Background(), &query.Query{}, 0, 4); err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	if limiter.Limit() != 4 {
		t.Errorf("limiter.Limit() = %v, want 4 after one 429 penalty", limiter.Limit())
	}
}

func TestFetchRange_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		select {
		case <-ctx.Done():
			return nil, &archive.FetchError{
				Kind:    archive.KindRetryable,
				Block:   from,
				Message: "request aborted",
				Err:     ctx.Err(),
			}
		case <-block:
			return chunkPage(t, from, to, to-from), nil
		}
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	s := testScheduler(fetcher, 1, RetryPolicy{MaxRetries: 5, InitialBackoff: time.Minute})
	_, err := s.FetchRange(ctx, &query.Query{}, 0, 10)
	if !errors.Is(err, archive.ErrContextCancelled) {
		t.Fatalf("errors.Is(err, ErrContextCancelled) = false, err = %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("State() = %s, want %s", s.State(), StateFailed)
	}
}

func TestFetchRange_SharedGateBoundsConcurrentFetches(t *testing.T) {
	defer goleak.VerifyNone(t)

	const capacity = 2
	gate := ratelimit.NewGate(capacity)
	limiter := ratelimit.NewLimiter(0, 1, false, zerolog.Nop())

	var inflight, peak atomic.Int64
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		now := inflight.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inflight.Add(-1)
		return chunkPage(t, from, to, 2), nil
	})

	eg, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 6; i++ {
		start := uint64(i * 100)
		s := NewScheduler(fetcher, gate, limiter, fastRetries(1), zerolog.Nop())
		eg.Go(func() error {
			blocks, err := s.FetchRange(ctx, &query.Query{}, start, start+10)
			if err != nil {
				return err
			}
			numbers := blockNumbers(blocks)
			for j, n := range numbers {
				if n != start+uint64(j) {
					t.Errorf("range starting %d out of order: %v", start, numbers)
					break
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("concurrent fetches failed: %v", err)
	}

	if peak.Load() > capacity {
		t.Errorf("peak in-flight requests = %d, want at most %d", peak.Load(), capacity)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateAwaitingPermit, "awaiting_permit"},
		{StateAwaitingToken, "awaiting_token"},
		{StateFetching, "fetching"},
		{StateRetrying, "retrying"},
		{StateDone, "done"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestScheduler_ObservesFetchingState(t *testing.T) {
	defer goleak.VerifyNone(t)

	var s *Scheduler
	var observed State
	fetcher := FetchPageFunc(func(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
		observed = s.State()
		return chunkPage(t, from, to, to-from), nil
	})

	s = testScheduler(fetcher, 1, fastRetries(1))
	if _, err := s.FetchRange(context.Background(), &query.Query{}, 0, 3); err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}

	if observed != StateFetching {
		t.Errorf("state during fetch = %s, want %s", observed, StateFetching)
	}
}
