// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goforj/moviematch/cache"
)

var (
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_cache_operations_total",
			Help: "Cache operations by op, driver and result (hit, miss, ok, error)",
		},
		[]string{"op", "driver", "result"},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviematch_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op", "driver"},
	)

	// RecommendationOutcomes counts how each recommendation request ended.
	RecommendationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_recommendation_outcomes_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"}, // cache_hit, computed, not_enough_data, no_genres, no_candidates, error
	)

	InvalidationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_cache_invalidations_total",
			Help: "Per-user recommendation cache invalidations by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	IdentityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviematch_identity_checks_total",
			Help: "Identity validations against the auth service by result",
		},
		[]string{"result"}, // accepted, rejected, unavailable
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviematch_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// CacheObserver records cache operations into CacheOperations and CacheOperationDuration.
func CacheObserver() cache.Observer {
	return cache.ObserverFunc(func(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration, driver cache.Driver) {
		CacheOperations.WithLabelValues(op, string(driver), cacheResult(op, hit, err)).Inc()
		CacheOperationDuration.WithLabelValues(op, string(driver)).Observe(dur.Seconds())
	})
}

func cacheResult(op string, hit bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case op == cache.OpGet || op == cache.OpGetJSON:
		if hit {
			return "hit"
		}
		return "miss"
	default:
		return "ok"
	}
}
