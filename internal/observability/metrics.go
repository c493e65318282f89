// Package observability exposes Prometheus metrics for the chat relay.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// Metrics holds the relay's Prometheus collectors and their registry.
// It implements chat.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive    prometheus.Gauge
	HistoryEntries    prometheus.Gauge
	EventsDelivered   *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec
	ConnectionsTotal  prometheus.Counter
	RateLimitedFrames prometheus.Counter
}

// NewMetrics creates and registers all metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_sessions_active",
			Help: "Number of sessions currently in the roster",
		}),
		HistoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_history_entries",
			Help: "Number of events retained in the replay buffer",
		}),
		EventsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_events_delivered_total",
				Help: "Frames queued to connections, by event kind",
			},
			[]string{"kind"},
		),
		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_frames_dropped_total",
				Help: "Inbound or outbound frames dropped, by reason",
			},
			[]string{"reason"},
		),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_connections_total",
			Help: "Total number of accepted websocket connections",
		}),
		RateLimitedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_rate_limited_frames_total",
			Help: "Inbound frames discarded by the per-connection rate limiter",
		}),
	}

	m.registry.MustRegister(
		m.SessionsActive,
		m.HistoryEntries,
		m.EventsDelivered,
		m.FramesDropped,
		m.ConnectionsTotal,
		m.RateLimitedFrames,
	)
	return m
}

// SetActiveSessions implements chat.Recorder.
func (m *Metrics) SetActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

// SetHistorySize implements chat.Recorder.
func (m *Metrics) SetHistorySize(n int) {
	m.HistoryEntries.Set(float64(n))
}

// EventDelivered implements chat.Recorder.
func (m *Metrics) EventDelivered(kind chat.Kind, recipients int) {
	m.EventsDelivered.WithLabelValues(string(kind)).Add(float64(recipients))
}

// FrameDropped implements chat.Recorder.
func (m *Metrics) FrameDropped(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// ConnectionAccepted counts an upgraded websocket connection.
func (m *Metrics) ConnectionAccepted() {
	m.ConnectionsTotal.Inc()
}

// RateLimited counts a frame discarded by a rate limiter.
func (m *Metrics) RateLimited() {
	m.RateLimitedFrames.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
