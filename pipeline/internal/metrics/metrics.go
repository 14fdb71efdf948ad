package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event intake metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_events_total",
			Help: "Total number of events processed, by event name and outcome",
		},
		[]string{"event_name", "outcome"},
	)

	// Event ID generation metrics
	IDFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_id_fallbacks_total",
			Help: "Event IDs generated from non-reproducible identifier sources",
		},
		[]string{"source"},
	)

	// Dedup metrics
	DedupReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_dedup_replays_total",
			Help: "Duplicate submissions suppressed by the replay guard",
		},
		[]string{"event_type"},
	)

	DedupStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_dedup_store_errors_total",
			Help: "Dedup store failures, by store (fast or durable)",
		},
		[]string{"store"},
	)

	DedupFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_dedup_fail_open_total",
			Help: "Claims allowed through because all dedup stores were degraded",
		},
	)

	// Trust metrics
	TrustResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_trust_results_total",
			Help: "Trust evaluations, by level and reason",
		},
		[]string{"level", "reason"},
	)

	UntrustedAnalyticsSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_untrusted_analytics_sends_total",
			Help: "Sends allowed to analytics platforms despite untrusted classification",
		},
	)

	// Platform mapping metrics
	MappingComplete = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_mapping_complete_total",
			Help: "Platform mappings with all required parameters present",
		},
		[]string{"platform", "event_name"},
	)

	MappingIncomplete = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_mapping_incomplete_total",
			Help: "Platform mappings missing required parameters",
		},
		[]string{"platform", "event_name"},
	)

	// Receipt metrics
	ReceiptUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixelbridge_pipeline_receipt_upserts_total",
			Help: "Receipt upserts, by result (insert or update)",
		},
		[]string{"result"},
	)

	// Processing duration
	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixelbridge_pipeline_process_duration_seconds",
			Help:    "End-to-end duration of pipeline processing per event",
			Buckets: prometheus.DefBuckets,
		},
	)
)
