package routecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RouteHits tracks route cache hits by layer (memory, redis)
	RouteHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dive_route_cache_hits_total",
			Help: "Total number of worker route cache hits",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// RouteMisses tracks route cache misses across both layers
	RouteMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dive_route_cache_misses_total",
			Help: "Total number of worker route cache misses",
		},
	)

	// RouteEntries tracks the number of routes held in the memory layer
	RouteEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dive_route_cache_entries",
			Help: "Current number of worker routes in the memory layer",
		},
	)

	// RouteErrors tracks shared-layer operation errors
	RouteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dive_route_cache_errors_total",
			Help: "Total number of route cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
