// Package metrics exposes prometheus instrumentation for referral
// transitions, expiry sweeps, access denials and HTTP traffic.
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

// Metrics holds the collectors registered on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	referralTransitions *prometheus.CounterVec
	referralsExpired    prometheus.Counter
	sweepDuration       prometheus.Histogram
	accessDenied        *prometheus.CounterVec
	recordSaves         *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		referralTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_transitions_total",
				Help: "Referral state transition attempts by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		referralsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_expired_total",
			Help: "Referrals cancelled by the expiry sweep",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "referral_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		accessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_denied_total",
				Help: "Requests denied by the access scope",
			},
			[]string{"role", "capability"},
		),
		recordSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "record_saves_total",
				Help: "Consultation and vitals upserts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
	m.registry.MustRegister(
		m.referralTransitions, m.referralsExpired, m.sweepDuration,
		m.accessDenied, m.recordSaves, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ReferralTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.referralTransitions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ReferralsExpired(n int, took time.Duration) {
	if m == nil {
		return
	}
	m.referralsExpired.Add(float64(n))
	m.sweepDuration.Observe(took.Seconds())
}

func (m *Metrics) AccessDenied(role, capability string) {
	if m == nil {
		return
	}
	m.accessDenied.WithLabelValues(role, capability).Inc()
}

func (m *Metrics) RecordSave(kind, outcome string) {
	if m == nil {
		return
	}
	m.recordSaves.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
