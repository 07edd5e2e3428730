// Package metrics provides the centralized Prometheus metrics registry for
// the archive client. All metrics are defined in their respective packages
// (client, pagination, ratelimit, routecache) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the archive client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - dive_rate_limit_wait_seconds (Histogram): Time spent waiting for a send token
//   - dive_rate_limit_penalties_total (Counter): Adaptive rate reductions after server throttling
//   - dive_effective_rate_limit (Gauge): Current effective request rate in req/s
//   - dive_inflight_requests (Gauge): Page requests currently holding a concurrency permit
//
// Pagination Metrics (pkg/pagination):
//   - dive_pages_total (Counter): Pages fetched successfully
//   - dive_blocks_fetched_total (Counter): Blocks covered by fetched pages
//   - dive_retries_total{kind} (Counter): Page retry attempts by error kind
//   - dive_retry_backoff_seconds (Histogram): Backoff delay before retries
//   - dive_retry_exhausted_total (Counter): Pages whose retry budget was exhausted
//
// Route Cache Metrics (pkg/routecache):
//   - dive_route_cache_hits_total{layer} (Counter): Route hits by layer (memory, redis)
//   - dive_route_cache_misses_total (Counter): Route misses across both layers
//   - dive_route_cache_entries (Gauge): Routes held in the memory layer
//   - dive_route_cache_errors_total{operation} (Counter): Shared-layer operation errors
//
// Request Metrics (pkg/client):
//   - dive_requests_total{endpoint, status} (Counter): Requests by endpoint (height, worker, query) and HTTP status
//   - dive_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - dive_errors_total{kind} (Counter): Failures by error kind
//
// Example Prometheus Queries:
//
//   # Route Cache Hit Rate
//   sum(rate(dive_route_cache_hits_total[5m])) /
//   (sum(rate(dive_route_cache_hits_total[5m])) + sum(rate(dive_route_cache_misses_total[5m])))
//
//   # Throughput in Blocks per Second
//   rate(dive_blocks_fetched_total[5m])
//
//   # Retry Rate per Page
//   rate(dive_retries_total[5m]) / rate(dive_pages_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dive_request_duration_seconds_bucket[5m]))
//
//   # Detecting Sustained Throttling
//   dive_effective_rate_limit < 1
