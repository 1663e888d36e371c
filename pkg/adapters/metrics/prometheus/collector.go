package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// UnmatchedRoute labels requests that did not match any registered route
	UnmatchedRoute = "unmatched"

	// OtherMethod labels requests with a non-standard method
	OtherMethod = "OTHER"
)

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// Collector records HTTP server metrics using Prometheus
type Collector struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	greetingsServed  prometheus.Counter
	buildInfo        *prometheus.GaugeVec
}

// NewCollector creates a new Prometheus metrics collector on its own registry.
// Go runtime and process collectors are registered alongside.
func NewCollector(version string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hello_http_requests_total",
				Help: "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hello_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hello_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			},
		),
		greetingsServed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hello_greetings_served_total",
				Help: "Total number of greetings written",
			},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hello_build_info",
				Help: "Build information, always 1",
			},
			[]string{"version"},
		),
	}

	c.buildInfo.WithLabelValues(version).Set(1)

	return c
}

// Registry returns the registry the collector's metrics live on
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records a finished HTTP request.
// An empty route is recorded as UnmatchedRoute and any method outside the
// standard set as OtherMethod, so clients cannot mint new series.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = UnmatchedRoute
	}
	if _, ok := knownMethods[method]; !ok {
		method = OtherMethod
	}
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight request gauge
func (c *Collector) IncInFlight() {
	c.requestsInFlight.Inc()
}

// DecInFlight decrements the in-flight request gauge
func (c *Collector) DecInFlight() {
	c.requestsInFlight.Dec()
}

// RecordGreeting increments the count of greetings served
func (c *Collector) RecordGreeting() {
	c.greetingsServed.Inc()
}
