package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks applied top-of-book updates.
	UpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_orderbook_updates_total",
		Help: "Total number of top-of-book updates applied",
	})

	// UpdatesDroppedTotal tracks updates dropped on the fan-out channel.
	UpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_orderbook_updates_dropped_total",
		Help: "Total number of updates dropped due to a full fan-out channel",
	})

	// BooksTracked tracks how many tokens have book state.
	BooksTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_orderbook_books_tracked",
		Help: "Number of tokens with top-of-book state",
	})
)
