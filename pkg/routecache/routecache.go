package routecache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultSize        = 1024
	DefaultTTL         = 5 * time.Minute
	DefaultGranularity = 10_000
)

// Options configures the route cache.
type Options struct {
	// Size is the maximum number of buckets tracked in memory.
	Size int

	// TTL is how long a cached route stays valid in both layers.
	TTL time.Duration

	// Granularity is the width of a routing bucket in blocks. All blocks
	// in the same bucket share one cached worker route.
	Granularity uint64
}

// Cache maps block heights to archive worker URLs.
//
// Lookups consult the in-process LRU first, then Redis when a shared client
// is configured. A hit in the Redis layer is promoted into memory.
type Cache struct {
	memory      *lru.LRU[uint64, string]
	redis       *redis.Client
	ttl         time.Duration
	granularity uint64
	logger      zerolog.Logger
}

// New creates a route cache. redisClient may be nil for memory-only caching.
func New(opts Options, redisClient *redis.Client, logger zerolog.Logger) *Cache {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Granularity == 0 {
		opts.Granularity = DefaultGranularity
	}

	return &Cache{
		memory:      lru.NewLRU[uint64, string](opts.Size, nil, opts.TTL),
		redis:       redisClient,
		ttl:         opts.TTL,
		granularity: opts.Granularity,
		logger:      logger.With().Str("component", "routecache").Logger(),
	}
}

// Bucket returns the routing bucket containing block.
func (c *Cache) Bucket(block uint64) uint64 {
	return block - block%c.granularity
}

// Granularity returns the bucket width in blocks.
func (c *Cache) Granularity() uint64 {
	return c.granularity
}

// Len returns the number of routes held in the memory layer.
func (c *Cache) Len() int {
	return c.memory.Len()
}

// Get returns the cached worker URL for the bucket containing block.
// A Redis failure is logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, block uint64) (string, bool) {
	bucket := c.Bucket(block)

	if workerURL, ok := c.memory.Get(bucket); ok {
		RouteHits.WithLabelValues("memory").Inc()
		return workerURL, true
	}

	if c.redis != nil {
		workerURL, err := c.redis.Get(ctx, redisKey(bucket)).Result()
		switch {
		case err == nil && workerURL != "":
			// Promote so later lookups skip the round trip.
			c.memory.Add(bucket, workerURL)
			RouteEntries.Set(float64(c.memory.Len()))
			RouteHits.WithLabelValues("redis").Inc()
			return workerURL, true
		case err != nil && err != redis.Nil:
			RouteErrors.WithLabelValues("get").Inc()
			c.logger.Warn().Err(err).Uint64("bucket", bucket).Msg("Route cache read failed")
		}
	}

	RouteMisses.Inc()
	return "", false
}

// Put stores the worker URL for the bucket containing block in all layers.
func (c *Cache) Put(ctx context.Context, block uint64, workerURL string) {
	if workerURL == "" {
		return
	}
	bucket := c.Bucket(block)

	c.memory.Add(bucket, workerURL)
	RouteEntries.Set(float64(c.memory.Len()))

	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKey(bucket), workerURL, c.ttl).Err(); err != nil {
			RouteErrors.WithLabelValues("set").Inc()
			c.logger.Warn().Err(err).Uint64("bucket", bucket).Msg("Route cache write failed")
		}
	}
}

// Invalidate drops the route for the bucket containing block from all
// layers. Called when a worker stops answering so the next fetch
// re-resolves its route.
func (c *Cache) Invalidate(ctx context.Context, block uint64) {
	bucket := c.Bucket(block)

	c.memory.Remove(bucket)
	RouteEntries.Set(float64(c.memory.Len()))

	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKey(bucket)).Err(); err != nil {
			RouteErrors.WithLabelValues("delete").Inc()
			c.logger.Warn().Err(err).Uint64("bucket", bucket).Msg("Route cache delete failed")
		}
	}
}

// redisKey builds the shared-layer key for a bucket.
// Format: dive:route:14000000
func redisKey(bucket uint64) string {
	return fmt.Sprintf("dive:route:%d", bucket)
}
