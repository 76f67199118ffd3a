// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnDuration tracks time from submit to reply, thinking delay included.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "Assistant turn duration in seconds",
			Buckets: []float64{.1, .5, 1, 1.5, 2, 3, 5},
		},
		[]string{"intent"},
	)

	// TurnsTotal tracks completed turns by classified intent.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Completed assistant turns",
		},
		[]string{"intent"},
	)

	// TurnsCancelledTotal tracks turns whose reply was dropped on unmount.
	TurnsCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_turns_cancelled_total",
			Help: "Assistant turns cancelled before replying",
		},
	)

	// BusyRejectionsTotal tracks submissions rejected while a turn was outstanding.
	BusyRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_busy_rejections_total",
			Help: "Submissions rejected while the assistant was busy",
		},
	)

	// MessagesTotal tracks appended messages.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"sender"},
	)

	// SessionsActive tracks mounted widget sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of mounted chat sessions",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// WebSocketConnectionsActive tracks active WebSocket connections.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// TranscriptPublishFailures tracks failed NATS publishes.
	TranscriptPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_publish_failures_total",
			Help: "Failed transcript publishes",
		},
		[]string{"kind"},
	)

	// NATSStreamMessages tracks messages in the transcript stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in the transcript stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)

	// EventsDropped tracks events not delivered to slow subscribers.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_events_dropped_total",
			Help: "Session events dropped for slow subscribers",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records metrics for a completed assistant turn.
func RecordTurn(intent string, duration float64) {
	TurnDuration.WithLabelValues(intent).Observe(duration)
	TurnsTotal.WithLabelValues(intent).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
