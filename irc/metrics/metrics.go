// Package metrics exposes Prometheus collectors for the daemon. A nil
// *Collector is valid and records nothing, so the server runs the same with
// or without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ircd"

// Collector holds the daemon's metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	sessions    prometheus.Gauge
	registered  prometheus.Gauge
	channels    prometheus.Gauge
	accepted    prometheus.Counter
	disconnects *prometheus.CounterVec
	commands    *prometheus.CounterVec
	bytesIn     prometheus.Counter
	bytesOut    prometheus.Counter

	// admin HTTP traffic
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

// New creates a Collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open client connections, registered or not.",
		}),
		registered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_clients",
			Help:      "Clients that completed registration.",
		}),
		channels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Channels known to the server.",
		}),
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted.",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Disconnects by cause.",
		}, []string{"cause"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands received by verb.",
		}, []string{"command"}),
		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "received_bytes_total",
			Help:      "Bytes read from clients.",
		}),
		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sent_bytes_total",
			Help:      "Bytes queued to clients.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests by status code.",
		}, []string{"method", "path", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Collector) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Connected counts an accepted connection
func (m *Collector) Connected() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.sessions.Inc()
}

// Disconnected records a closed connection and its cause
func (m *Collector) Disconnected(cause string) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	m.disconnects.WithLabelValues(cause).Inc()
}

// Command counts one dispatched command
func (m *Collector) Command(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

// BytesIn adds to the received byte counter
func (m *Collector) BytesIn(n int) {
	if m == nil {
		return
	}
	m.bytesIn.Add(float64(n))
}

// BytesOut adds to the sent byte counter
func (m *Collector) BytesOut(n int) {
	if m == nil {
		return
	}
	m.bytesOut.Add(float64(n))
}

// SetState refreshes the registered client and channel gauges
func (m *Collector) SetState(registered, channels int) {
	if m == nil {
		return
	}
	m.registered.Set(float64(registered))
	m.channels.Set(float64(channels))
}
