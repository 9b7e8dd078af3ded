package balance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CachedBalance tracks the cached USDC figure.
	CachedBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_balance_cached_usdc",
		Help: "Cached USDC balance in USD",
	})

	// ReservationsTotal tracks successful reservations.
	ReservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_balance_reservations_total",
		Help: "Total number of successful balance reservations",
	})

	// RefreshesTotal tracks successful chain refreshes.
	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_balance_refreshes_total",
		Help: "Total number of successful balance refreshes",
	})

	// RefreshErrorsTotal tracks failed chain refreshes.
	RefreshErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_balance_refresh_errors_total",
		Help: "Total number of failed balance refreshes",
	})
)
