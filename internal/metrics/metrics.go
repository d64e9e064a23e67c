package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_notifications_total",
			Help: "Total number of object notifications handled, by outcome",
		},
		[]string{"outcome"}, // "ignored", "indexed", "correlated", "failed"
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_notification_duration_seconds",
			Help:    "Time spent handling one object notification",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	SoftCorrelationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_soft_correlation_failures_total",
			Help: "Sidecars whose media companion could not be located or indexed",
		},
	)
)

// Item store metrics
var (
	UpsertAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_upsert_attempts",
			Help:    "Conditional updates issued per item upsert",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	UpsertExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_upsert_exhausted_total",
			Help: "Upserts that gave up after the attempt bound",
		},
	)

	AlbumLinks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_album_links_total",
			Help: "Album links written, by album namespace",
		},
		[]string{"namespace"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "Total number of HTTP requests to the read view",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
