// Package metrics provides Prometheus metrics for the relay-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of active relay sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Number of currently active relay sessions",
		},
	)

	// SessionsStarted tracks the total number of sessions started.
	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of relay sessions started",
		},
		[]string{"provider"},
	)

	// SessionsClosed tracks finished sessions by outcome.
	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sessions_closed_total",
			Help: "Total number of relay sessions closed, by outcome",
		},
		[]string{"outcome"},
	)

	// SessionDuration observes wall-clock session length.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Wall-clock duration of relay sessions",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// FramesDropped counts inbound frames dropped by the relay.
	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_frames_dropped_total",
			Help: "Inbound client frames dropped, by reason",
		},
		[]string{"reason"},
	)

	// ProviderEvents counts events forwarded from the backend to the client.
	ProviderEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_provider_events_total",
			Help: "Provider events forwarded to clients, by kind",
		},
		[]string{"kind"},
	)

	// TokensMinted tracks session tokens issued by the auth endpoint.
	TokensMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_tokens_minted_total",
			Help: "Session tokens minted",
		},
	)

	// TokenConsumeFailures tracks rejected WebSocket upgrades.
	TokenConsumeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_token_consume_failures_total",
			Help: "Token consume attempts that failed (missing, expired or reused)",
		},
	)

	// TrackerDropped counts usage events dropped by the non-blocking tracker.
	TrackerDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_tracker_events_dropped_total",
			Help: "Usage events dropped because the tracker queue was full",
		},
	)

	// HTTPRequests tracks HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration observes HTTP request latency.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
