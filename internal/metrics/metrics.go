// Package metrics provides the Prometheus collectors for alert evaluation,
// report generation, evaluation jobs and the HTTP API.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"civicwatch/internal/domain"
)

// Metrics groups every collector the service exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	AlertChecksTotal    *prometheus.CounterVec   // by alert_type, outcome
	EvaluationDuration  prometheus.Histogram     // full run per organization
	ReportsTotal        *prometheus.CounterVec   // by report_type, format, status
	ReportDuration      *prometheus.HistogramVec // by format
	EvaluationJobsTotal *prometheus.CounterVec   // by status
	HTTPRequestsTotal   *prometheus.CounterVec   // by route, method, code
	RateLimitedTotal    *prometheus.CounterVec   // by route
	AuditWriteFailures  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		AlertChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civicwatch_alert_checks_total",
				Help: "Alert rule evaluations by alert type and outcome",
			},
			[]string{"alert_type", "outcome"}, // outcome: created, suppressed, no_trigger, failed
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "civicwatch_evaluation_duration_seconds",
				Help:    "Time taken to evaluate all alert rules for one organization",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		ReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civicwatch_reports_total",
				Help: "Report generation attempts by report type, format and status",
			},
			[]string{"report_type", "format", "status"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "civicwatch_report_duration_seconds",
				Help:    "Time taken to generate a report, including rendering and upload",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"format"},
		),
		EvaluationJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civicwatch_evaluation_jobs_total",
				Help: "Evaluation jobs finished by the worker pool, by status",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civicwatch_http_requests_total",
				Help: "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "civicwatch_rate_limited_total",
				Help: "Requests rejected by the rate limiter, by route",
			},
			[]string{"route"},
		),
		AuditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "civicwatch_audit_write_failures_total",
				Help: "Audit log entries that could not be persisted",
			},
		),
	}
	for _, c := range []prometheus.Collector{
		m.AlertChecksTotal, m.EvaluationDuration, m.ReportsTotal, m.ReportDuration,
		m.EvaluationJobsTotal, m.HTTPRequestsTotal, m.RateLimitedTotal, m.AuditWriteFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) ObserveCheck(t domain.AlertType, o domain.CheckOutcome) {
	if m == nil {
		return
	}
	m.AlertChecksTotal.WithLabelValues(string(t), string(o)).Inc()
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveReport(t domain.ReportType, f domain.OutputFormat, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(string(t), string(f), status).Inc()
	m.ReportDuration.WithLabelValues(string(f)).Observe(d.Seconds())
}

func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.EvaluationJobsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, fmt.Sprint(code)).Inc()
}

func (m *Metrics) ObserveRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}
