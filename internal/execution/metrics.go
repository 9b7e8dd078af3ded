package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal tracks execution attempts by outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_executions_total",
			Help: "Total number of executions by aggregate status",
		},
		[]string{"status"},
	)

	// NearMissesTotal tracks pre-submit rejections by reason.
	NearMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_near_misses_total",
			Help: "Total number of opportunities rejected before submission",
		},
		[]string{"reason"},
	)

	// OpportunitiesSkippedTotal tracks skips outside the near-miss path.
	OpportunitiesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_skipped_total",
			Help: "Total number of opportunities skipped",
		},
		[]string{"reason"},
	)

	// BuildErrorsTotal tracks order build/sign failures.
	BuildErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_build_errors_total",
		Help: "Total number of order build or signing failures",
	})

	// ExpectedProfitUSD accumulates expected profit on filled executions.
	ExpectedProfitUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_expected_profit_usd_total",
		Help: "Cumulative expected profit from filled executions",
	})
)
