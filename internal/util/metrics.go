package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PriceComputationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_computations_total",
		Help: "Total number of price computations",
	}, []string{"outcome"})

	PriceComputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "price_compute_latency_seconds",
		Help:    "Latency of price computations, cache hits included",
		Buckets: prometheus.DefBuckets,
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	CacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_cache_errors_total",
		Help: "Total number of cache backend errors",
	}, []string{"op"})

	CacheInvalidatedKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_cache_invalidated_keys_total",
		Help: "Total number of cached prices removed by invalidation",
	})

	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_simulations_total",
		Help: "Total number of pricing simulations",
	}, []string{"kind"})

	PromotionWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_writes_total",
		Help: "Total number of promotion writes",
	}, []string{"op"})

	ValidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_validation_failures_total",
		Help: "Total number of rejected promotion writes",
	})

	AuditLogsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_logs_persisted_total",
		Help: "Total number of audit log rows written",
	})

	ConsumerMessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_messages_dropped_total",
		Help: "Total number of Kafka messages committed after the handler kept failing",
	}, []string{"topic"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
