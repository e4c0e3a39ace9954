package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImageryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcover_imagery_calls_total",
			Help: "Total imagery service calls",
		},
		[]string{"endpoint", "status"},
	)

	ImageryCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vcover_imagery_call_latency_seconds",
			Help:    "Imagery service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ImageryRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vcover_imagery_retries_total",
			Help: "Total retried imagery service calls",
		},
	)

	WindowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vcover_windows_processed_total",
			Help: "Temporal windows processed, by outcome",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vcover_run_duration_seconds",
			Help:    "End-to-end run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
