package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bnema/webview-content-blocker/internal/blocker"
)

// Metrics holds the Prometheus collectors of the content blocker
type Metrics struct {
	// Engine metrics
	Checks        *prometheus.CounterVec
	CheckDuration prometheus.Histogram
	HideScripts   prometheus.Counter
	Failures      *prometheus.CounterVec
	Rules         *prometheus.GaugeVec

	// Host metrics
	Sessions        prometheus.Gauge
	Intercepted     *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var _ blocker.Recorder = (*Metrics)(nil)

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_blocker_checks_total",
				Help: "Rule evaluations by outcome",
			},
			[]string{"outcome"},
		),
		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "content_blocker_check_duration_seconds",
				Help:    "Duration of a rule evaluation pass",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
			},
		),
		HideScripts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "content_blocker_hide_scripts_total",
				Help: "css-display-none scripts scheduled",
			},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_blocker_failures_total",
				Help: "Recovered failures by stage",
			},
			[]string{"stage"},
		),
		Rules: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "content_blocker_rules",
				Help: "Active rules per session",
			},
			[]string{"session"},
		),
		Sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "content_blocker_sessions",
				Help: "Open blocking sessions",
			},
		),
		Intercepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_blocker_intercepted_total",
				Help: "Requests paused by the browser bridge, by decision",
			},
			[]string{"decision"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_blocker_http_requests_total",
				Help: "Total number of control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "content_blocker_http_request_duration_seconds",
				Help:    "Control API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveCheck records one evaluation pass
func (m *Metrics) ObserveCheck(outcome string, elapsed time.Duration) {
	m.Checks.WithLabelValues(outcome).Inc()
	m.CheckDuration.Observe(elapsed.Seconds())
}

// HideScheduled records a scheduled hide script
func (m *Metrics) HideScheduled() {
	m.HideScripts.Inc()
}

// Failure records a recovered failure
func (m *Metrics) Failure(stage string) {
	m.Failures.WithLabelValues(stage).Inc()
}

// SetRules records the rule count of a session
func (m *Metrics) SetRules(session string, n int) {
	m.Rules.WithLabelValues(session).Set(float64(n))
}

// ForgetSession drops the per-session series
func (m *Metrics) ForgetSession(session string) {
	m.Rules.DeleteLabelValues(session)
}

// RecordRequest records a control API request
func (m *Metrics) RecordRequest(method, path, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
