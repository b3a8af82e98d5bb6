package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Quote metrics
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotes_total",
			Help: "Total number of computed quotes",
		},
		[]string{"requires_payment"},
	)

	QuoteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quote_duration_seconds",
			Help:    "Time spent producing a quote, including rule loading",
			Buckets: prometheus.DefBuckets,
		},
	)

	QuoteAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quote_amount",
			Help:    "Distribution of quoted totals that require payment",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	RulesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_rules_applied_total",
			Help: "Total number of payment rules that contributed to a quote",
		},
		[]string{"rule_type"},
	)

	QuoteCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_cache_hit_total",
			Help: "Total number of quote cache hits",
		},
	)

	QuoteCacheMiss = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_cache_miss_total",
			Help: "Total number of quote cache misses",
		},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Redis metrics
	RedisOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordQuote records a computed quote
func RecordQuote(requiresPayment bool, amount float64, duration time.Duration) {
	label := "false"
	if requiresPayment {
		label = "true"
		QuoteAmount.Observe(amount)
	}
	QuotesTotal.WithLabelValues(label).Inc()
	QuoteDuration.Observe(duration.Seconds())
}

// RecordRulesApplied adds count contributions of the given rule type
func RecordRulesApplied(ruleType string, count int) {
	if count <= 0 {
		return
	}
	RulesApplied.WithLabelValues(ruleType).Add(float64(count))
}

// RecordQuoteCacheHit records a quote cache hit
func RecordQuoteCacheHit() {
	QuoteCacheHit.Inc()
}

// RecordQuoteCacheMiss records a quote cache miss
func RecordQuoteCacheMiss() {
	QuoteCacheMiss.Inc()
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation, status string, duration time.Duration) {
	RedisOperationsTotal.WithLabelValues(operation, status).Inc()
	RedisOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}
