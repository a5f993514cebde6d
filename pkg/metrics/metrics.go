package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	// DispatchResults counts dispatch attempts per channel and outcome (ok|error).
	DispatchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_dispatch_results_total",
			Help: "Dispatch attempts per downstream channel",
		},
		[]string{"channel", "result"},
	)

	// NotificationsRead counts read-marking operations (single|bulk).
	NotificationsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_read_total",
			Help: "Total number of notifications marked read",
		},
		[]string{"mode"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
