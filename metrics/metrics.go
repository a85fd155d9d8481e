package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orthrus_config_reloads_total",
			Help: "Total number of configuration reload attempts",
		},
		[]string{"result"},
	)

	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orthrus_parse_failures_total",
			Help: "Total number of configuration parse failures",
		},
		[]string{"kind"},
	)

	DetectionPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orthrus_detection_points",
			Help: "Number of detection points in the active configuration",
		},
	)

	EventsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orthrus_events_added_total",
			Help: "Total number of security events stored",
		},
	)

	AttacksDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orthrus_attacks_detected_total",
			Help: "Total number of attacks detected",
		},
	)

	ResponsesTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orthrus_responses_triggered_total",
			Help: "Total number of responses triggered",
		},
		[]string{"action"},
	)

	EventsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orthrus_events_throttled_total",
			Help: "Total number of events rejected by the intake rate limiter",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orthrus_event_processing_duration_seconds",
			Help:    "Time taken to analyze events",
			Buckets: prometheus.DefBuckets,
		},
	)
)
