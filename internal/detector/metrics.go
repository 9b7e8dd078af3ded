package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AlertsTotal tracks emitted arbitrage alerts.
	AlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_detector_alerts_total",
		Help: "Total number of arbitrage alerts",
	})

	// NearMissesTotal tracks sub-threshold spreads within the margin.
	NearMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_detector_near_misses_total",
		Help: "Total number of near-miss spreads traced",
	})

	// RejectedTotal tracks skipped opportunities by reason.
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_detector_rejected_total",
			Help: "Total number of opportunities rejected before alerting",
		},
		[]string{"reason"},
	)

	// OpenOpportunities tracks currently open opportunity lifetimes.
	OpenOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_detector_open_opportunities",
		Help: "Number of currently open arbitrage opportunities",
	})

	// DetectionDurationSeconds tracks per-update detection latency.
	DetectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_detector_duration_seconds",
		Help:    "Latency of a single detection pass",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
	})
)
