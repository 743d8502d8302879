// Package metrics exposes the collector's Prometheus metrics.
// All metrics are defined in their respective packages (ratelimit,
// pagination, checkpoint, batch, pipeline, vendor, cache, retry) and
// registered via promauto; this package documents them and serves them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the collector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns a mux serving /metrics and /health.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Serve runs the metrics endpoint on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Metrics Documentation
//
// Pacing (pkg/ratelimit):
//   - collector_rate_limit_acquires_total{limiter} (Counter): Request slots granted
//   - collector_rate_limit_wait_seconds{limiter} (Histogram): Time spent waiting for a slot
//   - collector_rate_limit_holds_total{limiter} (Counter): Pauses requested by upstream Retry-After
//
// Pagination (pkg/pagination):
//   - collector_pages_fetched_total (Counter): Pages fetched
//   - collector_pagination_stops_total{reason} (Counter): Why collections stopped
//
// Sessions (pkg/pipeline):
//   - collector_items_processed_total{outcome} (Counter): Items accounted for by outcome
//   - collector_item_duration_seconds (Histogram): Processing time per item
//   - collector_sessions_total{result} (Counter): Session runs by result
//   - collector_sessions_active (Gauge): Sessions running in this process
//
// Checkpoints (pkg/checkpoint):
//   - collector_checkpoint_saves_total{backend, result} (Counter): Checkpoint saves
//   - collector_checkpoint_save_duration_seconds{backend} (Histogram): Save latency
//
// Batches (pkg/batch):
//   - collector_batches_flushed_total (Counter): Batch files written
//   - collector_batch_rows_flushed_total (Counter): Rows written to batch files
//   - collector_batch_flush_failures_total (Counter): Flushes that exhausted retries
//   - collector_batch_flush_duration_seconds (Histogram): Flush latency including retries
//   - collector_merges_total{result} (Counter): Merge operations
//   - collector_merged_rows_total (Counter): Rows written to merged outputs
//
// Upstream (pkg/vendor, pkg/cache):
//   - collector_vendor_requests_total{endpoint, status} (Counter): Vendor requests
//   - collector_vendor_request_duration_seconds{endpoint} (Histogram): Vendor request latency
//   - collector_vendor_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - collector_cache_hits_total / collector_cache_misses_total (Counter)
//   - collector_cache_stored_bytes_total (Counter)
//   - collector_cache_errors_total{operation} (Counter)
//
// Retry (pkg/retry):
//   - collector_retries_total{operation} (Counter): Retry attempts
//   - collector_retry_backoff_seconds{operation} (Histogram): Backoff durations
//   - collector_retry_exhausted_total{operation} (Counter): Operations that exhausted retries
//
// Example Prometheus Queries:
//
//   # Item failure rate
//   sum(rate(collector_items_processed_total{outcome!="success"}[5m])) /
//   sum(rate(collector_items_processed_total[5m]))
//
//   # Items per minute
//   sum(rate(collector_items_processed_total[1m])) * 60
//
//   # Cache hit rate
//   sum(rate(collector_cache_hits_total[5m])) /
//   (sum(rate(collector_cache_hits_total[5m])) + sum(rate(collector_cache_misses_total[5m])))
//
//   # P95 vendor latency
//   histogram_quantile(0.95, rate(collector_vendor_request_duration_seconds_bucket[5m]))
