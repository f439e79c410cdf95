// Package metrics provides Prometheus instrumentation for the chat server.
// It exposes gauges for connection counts, counters for frame throughput, and
// a histogram for broadcast fan-out sizes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks the current number of live WebSocket connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Current number of live WebSocket connections",
	})

	// FramesTotal counts processed inbound frames, labeled by outcome:
	// "handled", "rejected", "rate_limited", "malformed", or "ignored".
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_frames_total",
		Help: "Total number of inbound frames processed",
	}, []string{"outcome"})

	// MessagesPersisted counts chat messages written to storage, labeled by
	// target kind: "room" or "conversation".
	MessagesPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Total number of chat messages persisted",
	}, []string{"target"})

	// BroadcastRecipients records how many recipients each broadcast reached.
	BroadcastRecipients = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_broadcast_recipients",
		Help:    "Number of recipients per broadcast",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})
)

func init() {
	prometheus.MustRegister(
		Connections,
		FramesTotal,
		MessagesPersisted,
		BroadcastRecipients,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
