// Package metrics provides the centralized Prometheus metrics registry for
// the crawler. All metrics are defined in their respective packages (walker,
// fetch, cache, pacer, pipeline) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the crawler.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Walker Metrics (pkg/walker):
//   - splegis_pages_parsed_total (Counter): Listing pages parsed
//   - splegis_records_emitted_total (Counter): Proposals emitted to the sink
//   - splegis_records_skipped_total{reason} (Counter): Rows skipped (missing_code, derive_error)
//   - splegis_walks_completed_total{reason} (Counter): Finished walks by reason (exhausted, limit, error)
//
// Cache Metrics (pkg/cache):
//   - splegis_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - splegis_cache_misses_total (Counter): Cache misses
//   - splegis_cache_size_bytes{layer="redis"} (Gauge): Current cache size in bytes
//   - splegis_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pacer Metrics (pkg/pacer):
//   - splegis_pacer_waits_total (Counter): Requests that had to wait for the interval
//   - splegis_pacer_wait_seconds (Histogram): Time spent waiting
//   - splegis_pacer_fail_streak (Gauge): Consecutive portal failures widening the interval
//
// Request Metrics (pkg/fetch):
//   - splegis_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - splegis_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - splegis_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Retry Metrics (pkg/fetch):
//   - splegis_retries_total{error_class} (Counter): Retry attempts by error class
//   - splegis_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - splegis_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pipeline Metrics (pkg/pipeline):
//   - splegis_pipeline_emitted_total (Counter): Proposals handed to the pipeline
//   - splegis_pipeline_saved_total (Counter): Proposals upserted into MongoDB
//   - splegis_pipeline_save_errors_total (Counter): Failed upserts
//   - splegis_downloads_total{status} (Counter): Document downloads by outcome (ok, failed, skipped)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(splegis_cache_hits_total[5m])) /
//   (sum(rate(splegis_cache_hits_total[5m])) + sum(rate(splegis_cache_misses_total[5m])))
//
//   # Skip Rate
//   rate(splegis_records_skipped_total[5m]) / rate(splegis_records_emitted_total[5m])
//
//   # Request Error Rate
//   rate(splegis_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(splegis_request_duration_seconds_bucket[5m]))
//
//   # Download Failure Rate
//   rate(splegis_downloads_total{status="failed"}[5m])
