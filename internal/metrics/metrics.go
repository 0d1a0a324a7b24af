// Package metrics exposes Prometheus counters and histograms for the relay.
// A nil *Collector is valid and records nothing, so components can be built without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "relay"

// Collector owns the relay metrics and the registry they are registered with.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	upstreamErrors    *prometheus.CounterVec
	rateLimitRetries  *prometheus.CounterVec
	rateLimitGiveUps  *prometheus.CounterVec
	malformedEvents   *prometheus.CounterVec
	clientDisconnects *prometheus.CounterVec
}

// NewCollector creates the relay metrics and registers them. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Chat completion requests by backend, mode and response status.",
			},
			[]string{"backend", "mode", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from request arrival to the last byte written.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"backend", "mode"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_errors_total",
				Help:      "Upstream failures by backend and HTTP status (0 for transport errors).",
			},
			[]string{"backend", "code"},
		),
		rateLimitRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rate_limit_retries_total",
				Help:      "Upstream 429 responses followed by a wait and retry.",
			},
			[]string{"model"},
		),
		rateLimitGiveUps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rate_limit_give_ups_total",
				Help:      "Streams abandoned after exhausting rate limit retries.",
			},
			[]string{"model"},
		),
		malformedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "malformed_events_total",
				Help:      "Upstream SSE events skipped because their payload was not JSON.",
			},
			[]string{"backend"},
		),
		clientDisconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "client_disconnects_total",
				Help:      "Streams ended early because the client went away.",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.upstreamErrors,
		c.rateLimitRetries,
		c.rateLimitGiveUps,
		c.malformedEvents,
		c.clientDisconnects,
	)
	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the Prometheus exposition format for the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// RecordRequest counts one finished chat request and observes its duration.
func (c *Collector) RecordRequest(backend string, stream bool, status int, duration time.Duration) {
	if c == nil {
		return
	}
	mode := modeLabel(stream)
	c.requestsTotal.WithLabelValues(backend, mode, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(backend, mode).Observe(duration.Seconds())
}

// RecordUpstreamError counts an upstream failure. Use code 0 for transport errors.
func (c *Collector) RecordUpstreamError(backend string, code int) {
	if c == nil {
		return
	}
	c.upstreamErrors.WithLabelValues(backend, strconv.Itoa(code)).Inc()
}

// RecordRateLimitRetry counts a 429 that will be retried.
func (c *Collector) RecordRateLimitRetry(model string) {
	if c == nil {
		return
	}
	c.rateLimitRetries.WithLabelValues(model).Inc()
}

// RecordRateLimitGiveUp counts a stream abandoned after the final 429.
func (c *Collector) RecordRateLimitGiveUp(model string) {
	if c == nil {
		return
	}
	c.rateLimitGiveUps.WithLabelValues(model).Inc()
}

// RecordMalformedEvent counts a skipped non-JSON upstream event.
func (c *Collector) RecordMalformedEvent(backend string) {
	if c == nil {
		return
	}
	c.malformedEvents.WithLabelValues(backend).Inc()
}

// RecordClientDisconnect counts a stream cut short by the client.
func (c *Collector) RecordClientDisconnect(backend string) {
	if c == nil {
		return
	}
	c.clientDisconnects.WithLabelValues(backend).Inc()
}

func modeLabel(stream bool) string {
	if stream {
		return "stream"
	}
	return "non_stream"
}
