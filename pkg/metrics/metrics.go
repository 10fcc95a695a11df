// Package metrics exposes this platform's own Prometheus collectors:
// tests executed, quality assessments, alerts fired, notification
// deliveries, HTTP request durations and active sessions. Every
// collector is registered at package init via promauto, matching the
// pattern used throughout the services that make up this platform.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TestsExecutedTotal counts every TestResult produced, labeled by
	// test type (API, UI, AI_QUALITY) and outcome (passed, failed).
	TestsExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tests_executed_total",
		Help: "Total number of test executions recorded, by test type and outcome.",
	}, []string{"test_type", "outcome"})

	// TestDuration observes how long one scenario execution took, by
	// test type.
	TestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Duration of a single test execution, by test type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"test_type"})

	// QualityAssessmentsTotal counts every AI-output quality assessment
	// performed, by the metric judged (ACCURACY, RELEVANCE, ...).
	QualityAssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quality_assessments_total",
		Help: "Total number of AI output quality assessments performed, by metric.",
	}, []string{"metric"})

	// QualityAssessmentDuration observes how long one quality judge
	// call took, by judge backend.
	QualityAssessmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quality_assessment_duration_seconds",
		Help:    "Duration of a single quality assessment call, by backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	// AlertsFiredTotal counts alerts raised by the alert engine, by
	// severity.
	AlertsFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_fired_total",
		Help: "Total number of alerts fired, by severity.",
	}, []string{"severity"})

	// NotificationDeliveriesTotal counts attempted notification
	// deliveries, by channel (SLACK, WEBHOOK, ...) and outcome.
	NotificationDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Total number of notification delivery attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	// HTTPRequestDuration observes handler latency for every service's
	// HTTP surface, by route and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests served, by route and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	// ActiveSessions tracks how many orchestrator sessions are
	// currently RUNNING.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of test sessions currently running.",
	})
)

// RecordTestExecution records one completed test execution's outcome
// and duration.
func RecordTestExecution(testType string, passed bool, duration time.Duration) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	TestsExecutedTotal.WithLabelValues(testType, outcome).Inc()
	TestDuration.WithLabelValues(testType).Observe(duration.Seconds())
}

// RecordQualityAssessment records one quality judge call against a
// given backend and metric.
func RecordQualityAssessment(metric, backend string, duration time.Duration) {
	QualityAssessmentsTotal.WithLabelValues(metric).Inc()
	QualityAssessmentDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordAlertFired records one alert raised at the given severity.
func RecordAlertFired(severity string) {
	AlertsFiredTotal.WithLabelValues(severity).Inc()
}

// RecordNotificationDelivery records one notification delivery attempt
// on channel, succeeded or not.
func RecordNotificationDelivery(channel string, succeeded bool) {
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	NotificationDeliveriesTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordHTTPRequest records one served HTTP request's latency.
func RecordHTTPRequest(route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(route, status).Observe(duration.Seconds())
}

// SetActiveSessions sets the current count of RUNNING sessions.
func SetActiveSessions(n float64) {
	ActiveSessions.Set(n)
}

// Timer measures elapsed wall time from its creation, convenience
// wrapping the Record* helpers above.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer running now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the Timer was created.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordTestExecution records the Timer's elapsed duration as one test
// execution's duration.
func (t *Timer) RecordTestExecution(testType string, passed bool) {
	RecordTestExecution(testType, passed, t.Elapsed())
}

// RecordQualityAssessment records the Timer's elapsed duration as one
// quality assessment call's duration.
func (t *Timer) RecordQualityAssessment(metric, backend string) {
	RecordQualityAssessment(metric, backend, t.Elapsed())
}

// RecordHTTPRequest records the Timer's elapsed duration as one served
// HTTP request's latency.
func (t *Timer) RecordHTTPRequest(route, status string) {
	RecordHTTPRequest(route, status, t.Elapsed())
}
