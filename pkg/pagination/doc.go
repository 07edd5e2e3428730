// Package pagination drives the cursor-advancing fetch loop over a block
// range.
//
// The gateway decides how much of a requested range one response covers and
// reports the next uncovered block, so the scheduler advances strictly
// sequentially: each request starts at the previous page's declared next
// position, and output order always matches what a single sequential fetch
// would produce. Concurrency bounds simultaneous dispatch, never distinct
// sub-ranges; merging a completed page overlaps with the next request's
// permit and token waits.
//
// Example usage:
//
//	sched := pagination.NewScheduler(fetcher, gate, limiter, pagination.DefaultRetryPolicy(), logger)
//	blocks, err := sched.FetchRange(ctx, q, 14000000, 14000011)
//
// Each page attempt acquires a concurrency permit and a rate token before
// the request and releases the permit as soon as the attempt returns.
// Retryable failures back off exponentially with jitter up to the retry
// budget; fatal and protocol errors abort the fetch immediately.
package pagination
