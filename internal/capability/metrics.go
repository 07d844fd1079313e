package capability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifymanager_webhook_requests_total",
			Help: "Webhook capability requests by status.",
		},
		[]string{"status"},
	)
	webhookRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifymanager_webhook_request_duration_seconds",
			Help:    "Webhook capability request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	webpushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifymanager_webpush_total",
			Help: "Web push capability sends by status.",
		},
		[]string{"status"},
	)
)
