package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_items_processed_total",
		Help: "Total number of work items accounted for, by outcome",
	}, []string{"outcome"}) // "success", "invalid_data", "upstream_failure", "error"

	itemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_item_duration_seconds",
		Help:    "Time spent processing one work item, excluding rate limit waits",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_sessions_total",
		Help: "Total number of session runs by result",
	}, []string{"result"}) // "completed", "error", "cancelled"

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_sessions_active",
		Help: "Number of sessions currently running in this process",
	})
)
