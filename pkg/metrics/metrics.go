// Package metrics exposes the Prometheus registry used by the catalog ETL.
// All collectors are defined with promauto in the packages that update
// them (ratelimit, client, cache, pagination, transform, aggregate, store,
// pipeline) so no package depends on this one.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Gatherer is the gatherer served on /metrics. promauto registers every
// collector with the default registry, which this gathers from.
var Gatherer = prometheus.DefaultGatherer

// Path is the HTTP path metrics are served on.
const Path = "/metrics"

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Serve serves metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_calls_in_window (Gauge): Calls recorded in the current window
//   - catalog_rate_limit_waits_total (Counter): Callers that waited for the window to reset
//   - catalog_rate_limit_wait_seconds (Histogram): Time spent waiting for a window reset
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{status} (Counter): Requests by HTTP status
//   - catalog_request_duration_seconds (Histogram): Request duration
//   - catalog_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - catalog_retries_total{error_class} (Counter): Retry attempts by error class
//   - catalog_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - catalog_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{layer="redis"} (Counter): Page cache hits
//   - catalog_cache_misses_total (Counter): Page cache misses
//   - catalog_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - catalog_cache_errors_total{operation} (Counter): Cache operation errors
//
// Extraction Metrics (pkg/pagination):
//   - catalog_pages_fetched_total{outcome} (Counter): Pages by outcome (ok, empty, failed, cached)
//   - catalog_records_extracted_total (Counter): Raw records merged by the extractor
//
// Transform / Aggregate Metrics:
//   - catalog_transform_records_total{result} (Counter): accepted or rejection reason
//   - catalog_aggregate_batch_collections (Gauge): Size of the last aggregated batch
//
// Store Metrics (pkg/store):
//   - catalog_store_rows_inserted_total{table} (Counter): Rows committed
//   - catalog_store_bulk_insert_duration_seconds{table, result} (Histogram): Transaction duration
//
// Pipeline Metrics (pkg/pipeline):
//   - catalog_pipeline_runs_total{state} (Counter): Finished runs by final state (done, stopped, failed)
//   - catalog_pipeline_stage_duration_seconds{stage} (Histogram): Duration per stage
//   - catalog_pipeline_loaded_records (Gauge): Records loaded by the last run
//
// Example Prometheus Queries:
//
//   # Page failure rate
//   sum(rate(catalog_pages_fetched_total{outcome="failed"}[1h])) /
//   sum(rate(catalog_pages_fetched_total[1h]))
//
//   # Record rejection ratio
//   sum(rate(catalog_transform_records_total{result!="accepted"}[1h])) /
//   sum(rate(catalog_transform_records_total[1h]))
//
//   # Time spent throttled
//   rate(catalog_rate_limit_wait_seconds_sum[1h])
//
//   # Runs that stopped on an empty extraction
//   increase(catalog_pipeline_runs_total{state="stopped"}[1d])
