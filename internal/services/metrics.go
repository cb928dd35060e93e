package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// Presence metrics
	PresenceEvents *prometheus.CounterVec

	// Auto-save metrics
	AutoSaves     *prometheus.CounterVec
	AutoSaveDelay prometheus.Histogram

	// Connection manager reference for dynamic metrics
	connManager *ConnectionManager
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(connManager *ConnectionManager) *Metrics {
	metrics := &Metrics{
		connManager: connManager,

		// WebSocket active connections (gauge - can go up and down)
		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "slidehub_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),

		// WebSocket messages by type (counter - only goes up)
		WebSocketMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slidehub_websocket_messages_total",
			Help: "Total number of WebSocket messages by type",
		}, []string{"type", "direction"}), // direction: "inbound" or "outbound"

		// Presence events by kind (insert/update/delete) and origin
		PresenceEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slidehub_presence_events_total",
			Help: "Total number of session change events by kind",
		}, []string{"kind"}),

		// Auto-save outcomes
		AutoSaves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slidehub_autosaves_total",
			Help: "Total number of auto-save attempts by status",
		}, []string{"status"}), // status: "saved" or "failed"

		// Auto-save write latency
		AutoSaveDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "slidehub_autosave_duration_seconds",
			Help:    "Auto-save write latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
	}

	// Register a collector that updates WebSocket connections from ConnectionManager
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "slidehub_websocket_connections_current",
			Help: "Current number of active WebSocket connections (from connection manager)",
		},
		func() float64 {
			if connManager != nil {
				return float64(connManager.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordWebSocketConnect records a new WebSocket connection
func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketConnections.Dec()
}

// RecordWebSocketMessage records a WebSocket message
func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	m.WebSocketMessages.WithLabelValues(msgType, direction).Inc()
}

// RecordPresenceEvent records an incoming session change event
func (m *Metrics) RecordPresenceEvent(kind string) {
	m.PresenceEvents.WithLabelValues(kind).Inc()
}

// RecordAutoSave records an auto-save attempt outcome
func (m *Metrics) RecordAutoSave(status string) {
	m.AutoSaves.WithLabelValues(status).Inc()
}

// RecordAutoSaveDuration records auto-save write latency
func (m *Metrics) RecordAutoSaveDuration(seconds float64) {
	m.AutoSaveDelay.Observe(seconds)
}
