package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cartify"

// Metrics owns its registry so several servers can coexist in one process. All methods are nil-safe.
type Metrics struct {
	Registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	CheckoutAttempts *prometheus.CounterVec
	CheckoutRetries  prometheus.Counter
	CheckoutDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		Registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_ms",
			Help:        "HTTP request latency in milliseconds.",
			ConstLabels: constLabels,
			Buckets:     []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "path"}),
		CheckoutAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "checkout",
			Name:        "attempts_total",
			Help:        "Checkout transaction attempts by final state and reason.",
			ConstLabels: constLabels,
		}, []string{"state", "reason"}),
		CheckoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "checkout",
			Name:        "retries_total",
			Help:        "Checkout attempts retried after a conflict.",
			ConstLabels: constLabels,
		}),
		CheckoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "checkout",
			Name:        "duration_seconds",
			Help:        "Wall time of a checkout including retries.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"state"}),
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.CheckoutAttempts, m.CheckoutRetries, m.CheckoutDuration)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request count and latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			m.Requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(method, path).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

func (m *Metrics) CheckoutAttempt(state, reason string) {
	if m == nil {
		return
	}
	m.CheckoutAttempts.WithLabelValues(state, reason).Inc()
}

func (m *Metrics) CheckoutRetry() {
	if m == nil {
		return
	}
	m.CheckoutRetries.Inc()
}

func (m *Metrics) CheckoutDone(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.CheckoutDuration.WithLabelValues(state).Observe(d.Seconds())
}
