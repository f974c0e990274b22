// Package metrics exposes Prometheus collectors for the hub client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_requests_total",
			Help: "Number of dispatched requests",
		},
		[]string{"server", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "transport"},
	)

	connected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nexus_server_connected",
			Help: "Whether a live connection exists for a server (1) or not (0)",
		},
		[]string{"server"},
	)

	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_inbound_messages_total",
			Help: "Inbound stream payloads per server",
		},
		[]string{"server"},
	)

	eventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_events_published_total",
			Help: "Publishes to the fan-out bus, with or without subscribers",
		},
	)
)

// Register registers all collectors with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(requests, requestDuration, connected, inboundMessages, eventsPublished)
}

// RecordRequest increments the request counter for a server.
func RecordRequest(server, outcome string) {
	requests.WithLabelValues(server, outcome).Inc()
}

// ObserveRequestDuration records the duration of a completed request.
func ObserveRequestDuration(server, transport string, d time.Duration) {
	requestDuration.WithLabelValues(server, transport).Observe(d.Seconds())
}

// SetConnected records connection state for a server.
func SetConnected(server string, v bool) {
	g := connected.WithLabelValues(server)
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

// ForgetServer drops per-server series after unregistration.
func ForgetServer(server string) {
	labels := prometheus.Labels{"server": server}
	requests.DeletePartialMatch(labels)
	requestDuration.DeletePartialMatch(labels)
	connected.Delete(labels)
	inboundMessages.Delete(labels)
}

// RecordInboundMessage counts one inbound stream payload.
func RecordInboundMessage(server string) {
	inboundMessages.WithLabelValues(server).Inc()
}

// RecordEventPublished counts one publish to the fan-out bus.
func RecordEventPublished() {
	eventsPublished.Inc()
}
