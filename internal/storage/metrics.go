package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WriteErrorsTotal tracks failed storage writes by record kind.
	WriteErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_storage_write_errors_total",
			Help: "Total number of failed storage writes",
		},
		[]string{"kind"},
	)

	// WriteDroppedTotal tracks records dropped on a full queue.
	WriteDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_storage_write_dropped_total",
			Help: "Total number of records dropped due to a full write queue",
		},
		[]string{"kind"},
	)
)
