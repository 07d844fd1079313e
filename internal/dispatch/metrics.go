package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifymanager_delivery_total",
			Help: "Per-device deliveries by status (delivered, failed, unregistered).",
		},
		[]string{"status"},
	)
	deliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifymanager_delivery_duration_seconds",
			Help:    "Time spent in one capability call.",
			Buckets: prometheus.DefBuckets,
		},
	)
	skippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifymanager_sends_skipped_total",
			Help: "Sends skipped before any device was tried, by reason.",
		},
		[]string{"reason"},
	)
)
