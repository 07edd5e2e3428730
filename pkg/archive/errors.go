package archive

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the fetch engine.
var (
	// ErrRetriesExhausted is returned when all retry attempts for a page are exhausted.
	ErrRetriesExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while waiting.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies fetch errors for retry decisions and reporting.
type ErrorKind string

const (
	// KindInvalidRange covers malformed block ranges (start > end),
	// rejected before any network activity.
	KindInvalidRange ErrorKind = "invalid_range"

	// KindRetryable covers transient failures: transport errors,
	// 5xx responses, and 429 throttling.
	KindRetryable ErrorKind = "retryable"

	// KindRetriesExhausted means a page's retry budget was exceeded.
	// Fatal to the whole range fetch.
	KindRetriesExhausted ErrorKind = "retries_exhausted"

	// KindProtocolViolation means the server response broke the
	// monotonic-coverage contract (no progress, out-of-range blocks,
	// or a next position outside the requested bounds).
	KindProtocolViolation ErrorKind = "protocol_violation"

	// KindFatal covers non-retryable failures: 4xx other than 429
	// and undecodable response bodies.
	KindFatal ErrorKind = "fatal"

	// KindConversion means table assembly failed after a successful fetch.
	KindConversion ErrorKind = "conversion"
)

// FetchError is the single error surface of the fetch engine, carrying
// the classification alongside whatever HTTP context was available.
type FetchError struct {
	Kind       ErrorKind
	Status     int           // HTTP status, when a response was received
	Block      uint64        // first block of the failing page request
	RetryAfter time.Duration // server backoff hint from a 429, if any
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	prefix := fmt.Sprintf("archive %s error", e.Kind)
	if e.Status != 0 {
		prefix = fmt.Sprintf("archive %s error (status %d)", e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsRetryable reports whether err may be retried with backoff.
func IsRetryable(err error) bool {
	return KindOf(err) == KindRetryable
}
