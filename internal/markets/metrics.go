package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsTracked tracks the size of the selected market set.
	MarketsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_markets_tracked",
		Help: "Number of markets currently tracked",
	})

	// RefreshErrorsTotal tracks failed refresh cycles.
	RefreshErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_markets_refresh_errors_total",
		Help: "Total number of failed market refresh cycles",
	})

	// NegRiskPrefetchedTotal tracks resolved neg-risk flags.
	NegRiskPrefetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_markets_negrisk_prefetched_total",
		Help: "Total number of neg-risk flags resolved by prefetch",
	})
)
