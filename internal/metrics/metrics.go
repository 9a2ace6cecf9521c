package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's prometheus collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal         prometheus.Counter
	ScanFailures       prometheus.Counter
	ResponsesTotal     prometheus.Counter
	ServersDiscovered  prometheus.Gauge
	DevicesRegistered  prometheus.Counter
	Devices            prometheus.Gauge
	ConnectErrorsTotal prometheus.Counter
	ProxyRequests      *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ScansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alpacahub_discovery_scans_total",
		Help: "Discovery broadcast scans performed.",
	})
	m.ScanFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alpacahub_discovery_scan_failures_total",
		Help: "Discovery scans that failed or were rejected as overlapping.",
	})
	m.ResponsesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alpacahub_discovery_responses_total",
		Help: "Accepted discovery replies, including re-replies.",
	})
	m.ServersDiscovered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alpacahub_discovered_servers",
		Help: "Alpaca servers currently in the discovery cache.",
	})
	m.DevicesRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alpacahub_devices_registered_total",
		Help: "Devices added to the registry since startup.",
	})
	m.Devices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alpacahub_devices",
		Help: "Devices currently in the registry.",
	})
	m.ConnectErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alpacahub_device_connect_errors_total",
		Help: "Failed device connect/disconnect transitions.",
	})
	m.ProxyRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacahub_proxy_requests_total",
		Help: "Requests forwarded through the proxy gateway, by status class.",
	}, []string{"code_class"})

	m.registry.MustRegister(
		m.ScansTotal,
		m.ScanFailures,
		m.ResponsesTotal,
		m.ServersDiscovered,
		m.DevicesRegistered,
		m.Devices,
		m.ConnectErrorsTotal,
		m.ProxyRequests,
	)
	return m
}

// Handler returns the /metrics HTTP handler for the dedicated registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
