// Package metrics provides the centralized Prometheus metrics registry for the
// marketplace client. All metrics are defined in their respective packages
// (client, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the marketplace client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - marketplace_rate_limit_remaining (Gauge): Requests remaining in the current budget window
//   - marketplace_rate_limit_blocks_total (Counter): Requests blocked due to critical budget
//   - marketplace_rate_limit_throttles_total (Counter): Requests throttled due to warning budget
//
// Cache Metrics (pkg/cache):
//   - marketplace_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - marketplace_cache_misses_total (Counter): Cache misses
//   - marketplace_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - marketplace_304_responses_total (Counter): 304 Not Modified responses
//   - marketplace_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - marketplace_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - marketplace_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - marketplace_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - marketplace_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - marketplace_breaker_open_total (Counter): Requests rejected by an open circuit breaker
//
// Retry Metrics (pkg/client):
//   - marketplace_retries_total{error_class} (Counter): Retry attempts by error class
//   - marketplace_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - marketplace_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(marketplace_cache_hits_total[5m])) /
//   (sum(rate(marketplace_cache_hits_total[5m])) + sum(rate(marketplace_cache_misses_total[5m])))
//
//   # Budget Status
//   marketplace_rate_limit_remaining < 20
//
//   # Request Error Rate
//   rate(marketplace_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(marketplace_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(marketplace_304_responses_total[5m]) / rate(marketplace_requests_total[5m])
