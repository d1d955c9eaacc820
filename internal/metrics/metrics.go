package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route template, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ProviderCalls counts geocode, reverse geocode and route calls by outcome
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "map_provider_calls_total", Help: "Map provider calls by operation and outcome."},
		[]string{"op", "outcome"},
	)
	// ProviderLatency tracks provider call latency in milliseconds
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "map_provider_latency_ms", Help: "Map provider latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"op"},
	)
	// Alerts counts alerts presented by kind
	Alerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "map_alerts_total", Help: "Alerts presented by failure kind."},
		[]string{"kind"},
	)
	// ActiveSessions is the number of open map sessions
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "map_sessions_active", Help: "Open map sessions."},
	)
	// PlaceMutations counts store writes by kind
	PlaceMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "place_mutations_total", Help: "Place store writes by kind."},
		[]string{"kind"},
	)
	// WebhookDeliveries counts webhook attempts by outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by outcome."},
		[]string{"outcome"},
	)
)

// ObserveProvider records one provider call.
func ObserveProvider(op, outcome string, started time.Time) {
	ProviderCalls.WithLabelValues(op, outcome).Inc()
	ProviderLatency.WithLabelValues(op).Observe(float64(time.Since(started).Milliseconds()))
}

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(ProviderCalls)
		Registry.MustRegister(ProviderLatency)
		Registry.MustRegister(Alerts)
		Registry.MustRegister(ActiveSessions)
		Registry.MustRegister(PlaceMutations)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
