// Package metrics provides Prometheus metrics for the directory pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fern"

var (
	// ItemsProcessedTotal counts import and recovery items by outcome
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Total number of processed items by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// BatchDuration tracks how long a whole import or recovery batch takes
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Duration of import and recovery batches in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	// EnrichmentFailuresTotal counts best-effort sub-record writes that failed
	EnrichmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "enrichment_failures_total",
			Help:      "Total number of failed enrichment writes by kind",
		},
		[]string{"kind"},
	)

	// GeoMatchesTotal counts locality resolution results
	GeoMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geo",
			Name:      "matches_total",
			Help:      "Total number of locality matches by result",
		},
		[]string{"result"},
	)

	// OutboundRequestsTotal tracks outbound HTTP requests
	OutboundRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"client", "status"},
	)

	// OutboundRequestDuration tracks outbound HTTP request duration
	OutboundRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"client"},
	)

	// PhotosStoredTotal counts photo uploads by result
	PhotosStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "photos_total",
			Help:      "Total number of photo uploads by result",
		},
		[]string{"result"},
	)

	// EventsPublishedTotal counts directory events sent to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of directory events published by type and status",
		},
		[]string{"event_type", "status"},
	)
)

// RecordItem records the outcome of one pipeline item.
func RecordItem(mode, outcome string) {
	ItemsProcessedTotal.WithLabelValues(mode, outcome).Inc()
}

func RecordBatch(mode string, duration time.Duration) {
	BatchDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

func RecordEnrichmentFailure(kind string) {
	EnrichmentFailuresTotal.WithLabelValues(kind).Inc()
}

func RecordGeoMatch(result string) {
	GeoMatchesTotal.WithLabelValues(result).Inc()
}

func RecordOutboundRequest(client, status string, duration time.Duration) {
	OutboundRequestsTotal.WithLabelValues(client, status).Inc()
	OutboundRequestDuration.WithLabelValues(client).Observe(duration.Seconds())
}

func RecordPhoto(result string) {
	PhotosStoredTotal.WithLabelValues(result).Inc()
}

func RecordEvent(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}
