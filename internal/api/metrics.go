package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts the work done by the API.
type Metrics struct {
	registry *prometheus.Registry
	sessions *prometheus.CounterVec
	overlays *prometheus.CounterVec
	encodes  *prometheus.CounterVec
	uploads  *prometheus.CounterVec
}

// NewMetrics registers the API collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagemerger",
			Name:      "sessions_total",
			Help:      "Sessions opened, by result.",
		}, []string{"result"}),
		overlays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagemerger",
			Name:      "overlays_total",
			Help:      "Overlay draw requests, by result.",
		}, []string{"result"}),
		encodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagemerger",
			Name:      "encodes_total",
			Help:      "Encoded outputs, by MIME type.",
		}, []string{"mime"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagemerger",
			Name:      "uploads_total",
			Help:      "Uploads, by first strategy and result.",
		}, []string{"strategy", "result"}),
	}
	m.registry.MustRegister(m.sessions, m.overlays, m.encodes, m.uploads)
	m.registry.MustRegister(collectors.NewGoCollector())
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
