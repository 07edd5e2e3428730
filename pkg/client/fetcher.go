package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dariaag/dive-go/pkg/archive"
	"github.com/dariaag/dive-go/pkg/query"
	"github.com/dariaag/dive-go/pkg/routecache"
)

// pageFetcher performs one archive page request: resolve the worker serving
// the start block, POST the encoded query, decode the block array. Retry
// orchestration is the scheduler's job; every request here is single-shot.
type pageFetcher struct {
	baseURL    string
	httpClient *http.Client
	routes     *routecache.Cache
	logger     zerolog.Logger
}

// FetchPage requests one page covering a prefix of [from, to).
func (f *pageFetcher) FetchPage(ctx context.Context, q *query.Query, from, to uint64) (*archive.Page, error) {
	workerURL, err := f.resolveWorker(ctx, from)
	if err != nil {
		return nil, err
	}

	body, err := q.Encode(from, to)
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return nil, &archive.FetchError{
			Kind:    archive.KindFatal,
			Block:   from,
			Message: "encode query",
			Err:     err,
		}
	}

	page, err := f.postQuery(ctx, workerURL, body, from, to)
	if err != nil {
		// A worker that stops answering poisons its cached route; drop it
		// so the retry re-resolves. Throttling is not the worker's fault.
		var fe *archive.FetchError
		if errors.As(err, &fe) && fe.Kind == archive.KindRetryable && fe.Status != http.StatusTooManyRequests {
			f.routes.Invalidate(ctx, from)
		}
		return nil, err
	}

	return page, nil
}

// resolveWorker returns the URL of the worker serving block, consulting the
// route cache before asking the router.
func (f *pageFetcher) resolveWorker(ctx context.Context, block uint64) (string, error) {
	if workerURL, ok := f.routes.Get(ctx, block); ok {
		return workerURL, nil
	}

	endpoint := fmt.Sprintf("%s/%d/worker", f.baseURL, block)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return "", &archive.FetchError{
			Kind:    archive.KindFatal,
			Block:   block,
			Message: "create worker request",
			Err:     err,
		}
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	diveRequestDuration.WithLabelValues("worker").Observe(time.Since(start).Seconds())
	if err != nil {
		diveRequestsTotal.WithLabelValues("worker", "network_error").Inc()
		return "", networkError(err, block, "worker resolution")
	}
	defer resp.Body.Close()

	diveRequestsTotal.WithLabelValues("worker", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp, block, "worker resolution")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(err, block, "worker resolution")
	}

	workerURL := strings.TrimSpace(string(raw))
	if workerURL == "" {
		diveErrorsTotal.WithLabelValues(string(archive.KindProtocolViolation)).Inc()
		return "", &archive.FetchError{
			Kind:    archive.KindProtocolViolation,
			Status:  resp.StatusCode,
			Block:   block,
			Message: "router returned an empty worker URL",
		}
	}

	f.routes.Put(ctx, block, workerURL)
	f.logger.Debug().
		Uint64("block", block).
		Str("worker", workerURL).
		Msg("Resolved worker route")

	return workerURL, nil
}

// postQuery sends the encoded query to the worker and validates the page it
// returns against the coverage contract.
func (f *pageFetcher) postQuery(ctx context.Context, workerURL string, body []byte, from, to uint64) (*archive.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, workerURL, bytes.NewReader(body))
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return nil, &archive.FetchError{
			Kind:    archive.KindFatal,
			Block:   from,
			Message: "create page request",
			Err:     err,
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	diveRequestDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())
	if err != nil {
		diveRequestsTotal.WithLabelValues("query", "network_error").Inc()
		return nil, networkError(err, from, "page query")
	}
	defer resp.Body.Close()

	diveRequestsTotal.WithLabelValues("query", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp, from, "page query")
	}

	var blocks []archive.Block
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return nil, &archive.FetchError{
			Kind:    archive.KindFatal,
			Status:  resp.StatusCode,
			Block:   from,
			Message: "decode page body",
			Err:     err,
		}
	}

	page, err := archive.NewPage(blocks, from, to)
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindProtocolViolation)).Inc()
		return nil, err
	}

	f.logger.Debug().
		Uint64("from_block", from).
		Uint64("next_block", page.NextBlock).
		Int("blocks", page.BlockCount()).
		Msg("Page received")

	return page, nil
}

// classifyResponse maps a non-2xx archive response to the error taxonomy.
// 5xx responses are worth retrying; 429 additionally carries the server's
// Retry-After hint; any other 4xx will not improve on retry.
func classifyResponse(resp *http.Response, block uint64, op string) *archive.FetchError {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		diveErrorsTotal.WithLabelValues(string(archive.KindRetryable)).Inc()
		return &archive.FetchError{
			Kind:       archive.KindRetryable,
			Status:     resp.StatusCode,
			Block:      block,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    op + " throttled",
		}
	case resp.StatusCode >= 500:
		diveErrorsTotal.WithLabelValues(string(archive.KindRetryable)).Inc()
		return &archive.FetchError{
			Kind:    archive.KindRetryable,
			Status:  resp.StatusCode,
			Block:   block,
			Message: fmt.Sprintf("%s failed: %s", op, resp.Status),
		}
	default:
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return &archive.FetchError{
			Kind:    archive.KindFatal,
			Status:  resp.StatusCode,
			Block:   block,
			Message: fmt.Sprintf("%s rejected: %s", op, resp.Status),
		}
	}
}

// networkError wraps a transport failure as a retryable fetch error.
func networkError(err error, block uint64, op string) *archive.FetchError {
	diveErrorsTotal.WithLabelValues(string(archive.KindRetryable)).Inc()
	return &archive.FetchError{
		Kind:    archive.KindRetryable,
		Block:   block,
		Message: op + " transport failure",
		Err:     err,
	}
}

// parseRetryAfter reads a Retry-After header as delay seconds or an HTTP
// date. Unparseable values yield 0 so the normal backoff applies.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
