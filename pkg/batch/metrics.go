package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_batches_flushed_total",
		Help: "Total number of batch files written",
	})

	rowsFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_batch_rows_flushed_total",
		Help: "Total number of data rows written to batch files",
	})

	flushFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_batch_flush_failures_total",
		Help: "Total number of batch flushes that exhausted their retries",
	})

	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_batch_flush_duration_seconds",
		Help:    "Batch flush duration including retries",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_merges_total",
		Help: "Total number of merge operations by result",
	}, []string{"result"}) // "ok", "error"

	mergedRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_merged_rows_total",
		Help: "Total number of data rows written to merged outputs",
	})
)
