// Package client provides the archive datasource: concurrency-bounded,
// rate-limited block range fetching with worker route caching.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dariaag/dive-go/pkg/archive"
	"github.com/dariaag/dive-go/pkg/pagination"
	"github.com/dariaag/dive-go/pkg/query"
	"github.com/dariaag/dive-go/pkg/ratelimit"
	"github.com/dariaag/dive-go/pkg/routecache"
	"github.com/dariaag/dive-go/pkg/table"
)

// Prometheus metrics for archive request operations.
var (
	diveRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dive_requests_total",
		Help: "Total archive requests by endpoint and status",
	}, []string{"endpoint", "status"})

	diveRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dive_request_duration_seconds",
		Help:    "Archive request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	diveErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dive_errors_total",
		Help: "Total archive request failures by error kind",
	}, []string{"kind"})
)

// Datasource is the main entry point for fetching block data from an archive.
type Datasource struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	gate       *ratelimit.Gate
	routes     *routecache.Cache
	fetcher    *pageFetcher
	policy     pagination.RetryPolicy
	logger     zerolog.Logger
}

// Config holds the datasource configuration.
type Config struct {
	// BaseURL is the archive router endpoint
	// Format: "https://v2.archive.subsquid.io/network/ethereum-mainnet"
	BaseURL string

	// Concurrency
	MaxConcurrency int // Max parallel page requests

	// Rate Limiting
	RateLimit        float64 // Requests per second (0 = unlimited)
	RateBurst        int     // Token bucket burst size
	AdaptiveThrottle bool    // Halve the rate when the archive throttles

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration

	// HTTPClient overrides the default transport (optional, for testing)
	HTTPClient *http.Client

	// Redis enables the shared worker route cache layer (optional)
	Redis *redis.Client

	// Worker routing
	RouteTTL         time.Duration
	RouteCacheSize   int
	RouteGranularity uint64 // Blocks per routing bucket

	// Logger overrides the global logger (optional)
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration for an archive endpoint.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		MaxConcurrency:   5,
		RateLimit:        0, // Unlimited until the archive says otherwise
		RateBurst:        1,
		AdaptiveThrottle: false,
		MaxRetries:       4,
		InitialBackoff:   100 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		RequestTimeout:   30 * time.Second,
		RouteTTL:         routecache.DefaultTTL,
		RouteCacheSize:   routecache.DefaultSize,
		RouteGranularity: routecache.DefaultGranularity,
	}
}

// New creates a new archive datasource.
func New(cfg Config) (*Datasource, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q is not an absolute URL", cfg.BaseURL)
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.InitialBackoff < 0 || cfg.MaxBackoff < 0 {
		return nil, fmt.Errorf("backoff durations must be >= 0")
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	// Initialize logger
	logger := log.With().Str("component", "datasource").Logger()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "datasource").Logger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.RequestTimeout,
		}
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst, cfg.AdaptiveThrottle, logger)
	gate := ratelimit.NewGate(cfg.MaxConcurrency)

	routes := routecache.New(routecache.Options{
		Size:        cfg.RouteCacheSize,
		TTL:         cfg.RouteTTL,
		Granularity: cfg.RouteGranularity,
	}, cfg.Redis, logger)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	d := &Datasource{
		config:     cfg,
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		gate:       gate,
		routes:     routes,
		policy: pagination.RetryPolicy{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			Multiplier:     2.0,
		},
		logger: logger,
	}
	d.fetcher = &pageFetcher{
		baseURL:    baseURL,
		httpClient: httpClient,
		routes:     routes,
		logger:     logger,
	}

	return d, nil
}

// GetDataInRange fetches all blocks in the half-open range [startBlock,
// endBlock) and returns them in ascending order. The result is identical
// for any MaxConcurrency setting.
func (d *Datasource) GetDataInRange(ctx context.Context, q *query.Query, startBlock, endBlock uint64) ([]archive.Block, error) {
	if startBlock > endBlock {
		diveErrorsTotal.WithLabelValues(string(archive.KindInvalidRange)).Inc()
		return nil, &archive.FetchError{
			Kind:    archive.KindInvalidRange,
			Block:   startBlock,
			Message: fmt.Sprintf("start block %d is beyond end block %d", startBlock, endBlock),
		}
	}
	if q == nil {
		q = &query.Query{}
	}

	// One fetch id correlates every page, retry, and log line of this call.
	fetchID := uuid.NewString()
	logger := d.logger.With().Str("fetch_id", fetchID).Logger()

	scheduler := pagination.NewScheduler(d.fetcher, d.gate, d.limiter, d.policy, logger)
	return scheduler.FetchRange(ctx, q, startBlock, endBlock)
}

// GetAsTable fetches the range and assembles the records into a columnar
// table using the query's field selections.
func (d *Datasource) GetAsTable(ctx context.Context, q *query.Query, startBlock, endBlock uint64) (*table.Table, error) {
	if q == nil {
		q = &query.Query{}
	}

	blocks, err := d.GetDataInRange(ctx, q, startBlock, endBlock)
	if err != nil {
		return nil, err
	}

	tbl, err := table.Assemble(blocks, q)
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindConversion)).Inc()
		return nil, err
	}
	return tbl, nil
}

// Height returns the archive's current head block number.
func (d *Datasource) Height(ctx context.Context) (uint64, error) {
	endpoint := d.baseURL + "/height"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, &archive.FetchError{
			Kind:    archive.KindFatal,
			Message: "create height request",
			Err:     err,
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	diveRequestDuration.WithLabelValues("height").Observe(time.Since(start).Seconds())
	if err != nil {
		diveRequestsTotal.WithLabelValues("height", "network_error").Inc()
		return 0, networkError(err, 0, "height query")
	}
	defer resp.Body.Close()

	diveRequestsTotal.WithLabelValues("height", strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return 0, classifyResponse(resp, 0, "height query")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, networkError(err, 0, "height query")
	}

	height, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		diveErrorsTotal.WithLabelValues(string(archive.KindFatal)).Inc()
		return 0, &archive.FetchError{
			Kind:    archive.KindFatal,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("height body %q is not a block number", strings.TrimSpace(string(raw))),
			Err:     err,
		}
	}

	d.logger.Debug().Uint64("height", height).Msg("Archive height")
	return height, nil
}

// Routes returns the worker route cache (for testing).
func (d *Datasource) Routes() *routecache.Cache {
	return d.routes
}

// Limiter returns the shared rate limiter (for testing).
func (d *Datasource) Limiter() *ratelimit.Limiter {
	return d.limiter
}
