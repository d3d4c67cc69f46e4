// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	Messages      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	RateLimited   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	FilesPurged   prometheus.Counter
}

// New creates the relay collectors on a private registry together with the
// standard Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaultrelay_open_connections",
			Help: "Number of open client connections",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrelay_messages_total",
			Help: "Number of inbound messages by type",
		}, []string{"type"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrelay_error_replies_total",
			Help: "Number of error frames sent by code",
		}, []string{"code"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrelay_rate_limited_total",
			Help: "Number of requests rejected by the rate limiter",
		}, []string{"scope"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultrelay_notifications_total",
			Help: "Number of change notifications by delivery result",
		}, []string{"result"}),
		FilesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultrelay_files_purged_total",
			Help: "Number of tombstones removed by the retention sweeper",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Connections, m.Messages, m.Errors, m.RateLimited, m.Notifications, m.FilesPurged,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
