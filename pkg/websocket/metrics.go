package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connected stream connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// MessagesReceivedTotal tracks messages received by event type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_ws_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"event_type"},
	)

	// UpdatesDroppedTotal tracks updates dropped due to full channels.
	UpdatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_ws_updates_dropped_total",
			Help: "Total number of book updates dropped",
		},
		[]string{"reason"},
	)

	// SubscriptionCount tracks subscribed assets across the pool.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_ws_subscription_count",
		Help: "Number of subscribed assets across all connections",
	})

	// ZombieConnectionsTotal tracks watchdog force-closes.
	ZombieConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_ws_zombie_connections_total",
		Help: "Total number of connections force-closed by the watchdog",
	})

	// ConnectionDuration tracks connection lifetime before disconnect.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 86400},
	})
)
