package metrics

import (
	"context"
	"net/http"

	"campus-chat/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campus_chat"

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	connections   prometheus.Gauge
	droppedConns  prometheus.Counter
	frames        *prometheus.CounterVec
	announcements *prometheus.CounterVec
	lastOnline    prometheus.Gauge
}

// New registers the collectors on a fresh registry. onlineUsers feeds the
// live online-user gauge.
func New(onlineUsers func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections",
			Help:      "Number of open websocket connections.",
		}),
		droppedConns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "dropped_connections_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Inbound STOMP frames by command.",
		}, []string{"command"}),
		announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "announcements_total",
			Help:      "JOIN and LEAVE announcements decided by the coordinator.",
		}, []string{"type"}),
		lastOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "announced_online_users",
			Help:      "Online-user count carried by the latest announcement.",
		}),
	}

	collectors := []prometheus.Collector{
		m.connections, m.droppedConns, m.frames, m.announcements, m.lastOnline,
	}
	if onlineUsers != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "online_users",
			Help:      "Distinct identities with at least one live connection.",
		}, func() float64 { return float64(onlineUsers()) }))
	}
	m.registry.MustRegister(collectors...)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncConn() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) DecConn() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.droppedConns.Inc()
	}
}

func (m *Metrics) IncFrame(command string) {
	if m != nil {
		m.frames.WithLabelValues(command).Inc()
	}
}

// ObservePresence counts coordinator announcements.
func (m *Metrics) ObservePresence(_ context.Context, kind models.EventType, _ string, online int) {
	if m == nil {
		return
	}
	m.announcements.WithLabelValues(string(kind)).Inc()
	m.lastOnline.Set(float64(online))
}
