package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name (default "layover").
	Namespace string

	// Buckets are the request duration histogram buckets (default prometheus.DefBuckets).
	Buckets []float64

	// Registry receives the collectors (default prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// Metrics holds the HTTP and route table collectors.
type Metrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	views     *prometheus.CounterVec
	rules     *prometheus.GaugeVec
	fallbacks prometheus.Counter
}

// NewMetrics creates and registers the collectors. It panics if they are
// already registered with cfg.Registry.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "layover"
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   cfg.Buckets,
		}, []string{"route", "method"}),

		views: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "console",
			Name:      "views_total",
			Help:      "Console views rendered, by route pattern and rule source.",
		}, []string{"route", "source"}),

		rules: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "console",
			Name:      "route_rules",
			Help:      "Rules in the console route table by source.",
		}, []string{"source"}),

		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "console",
			Name:      "fallback_redirects_total",
			Help:      "Requests redirected by the console fallback rule.",
		}),
	}
}

// Handler returns a gin middleware recording request count and duration.
// Unmatched requests share the "unmatched" route label to bound cardinality.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := routeLabel(c)
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveView counts one rendered console view. Safe on a nil receiver.
func (m *Metrics) ObserveView(route, source string) {
	if m == nil {
		return
	}
	m.views.WithLabelValues(route, source).Inc()
}

// ObserveFallback counts one fallback redirect. Safe on a nil receiver.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// SetRules records the number of table rules per source. Safe on a nil receiver.
func (m *Metrics) SetRules(counts map[string]int) {
	if m == nil {
		return
	}
	m.rules.Reset()
	for source, n := range counts {
		m.rules.WithLabelValues(source).Set(float64(n))
	}
}
