// Package aggregator implements the results aggregator (C6): a bounded
// sliding window of TestResults, trend analysis, anomaly detection,
// quality insights, and report export.
package aggregator

import (
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// TrendDirection classifies how a metric has been moving over a window.
type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendDeclining TrendDirection = "DECLINING"
	TrendStable    TrendDirection = "STABLE"
	TrendVolatile  TrendDirection = "VOLATILE"
)

// Trend is one metric's direction, confidence and supporting statistics
// over a reporting window.
type Trend struct {
	Metric      string         `json:"metric"`
	Direction   TrendDirection `json:"direction"`
	Slope       float64        `json:"slope"`
	Correlation float64        `json:"correlation"`
	Confidence  float64        `json:"confidence"`
	SampleCount int            `json:"sample_count"`
}

// InsightType names one of the three quality-insight detectors.
type InsightType string

const (
	InsightRegression  InsightType = "REGRESSION"
	InsightImprovement InsightType = "IMPROVEMENT"
	InsightPattern     InsightType = "PATTERN"
	InsightComparative InsightType = "COMPARATIVE"
)

// InsightPriority ranks how urgently an insight deserves attention.
type InsightPriority string

const (
	PriorityLow    InsightPriority = "LOW"
	PriorityMedium InsightPriority = "MEDIUM"
	PriorityHigh   InsightPriority = "HIGH"
)

// QualityInsight is one observation a detector raised about a metric's
// recent behavior.
type QualityInsight struct {
	Type            InsightType        `json:"type"`
	Confidence      float64            `json:"confidence"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	AffectedMetrics []string           `json:"affected_metrics"`
	Evidence        map[string]float64 `json:"evidence,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	Priority        InsightPriority    `json:"priority"`
}

// Anomaly is one data point whose value deviated from its series' mean
// by more than the configured number of standard deviations.
type Anomaly struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Mean      float64   `json:"mean"`
	StdDevs   float64   `json:"std_devs"`
	Timestamp time.Time `json:"timestamp"`
}

// TestSummary aggregates pass/fail counts and timing over a set of
// TestResults.
type TestSummary struct {
	TotalTests     int     `json:"total_tests"`
	PassedTests    int     `json:"passed_tests"`
	FailedTests    int     `json:"failed_tests"`
	PassRate       float64 `json:"pass_rate"`
	AvgScore       float64 `json:"avg_score"`
	AvgDurationSec float64 `json:"avg_duration_s"`
}

// PerformanceSummary aggregates duration statistics across a window's
// results, independent of pass/fail or quality scoring.
type PerformanceSummary struct {
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P50DurationMs float64 `json:"p50_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	P99DurationMs float64 `json:"p99_duration_ms"`
}

// FailureEntry ranks one scenario by how often it has failed.
type FailureEntry struct {
	ScenarioID   string `json:"scenario_id"`
	FailureCount int    `json:"failure_count"`
}

// PerformerEntry ranks one scenario by score-per-second.
type PerformerEntry struct {
	ScenarioID string  `json:"scenario_id"`
	Efficiency float64 `json:"efficiency"`
	AvgScore   float64 `json:"avg_score"`
}

// ReportRequest bounds and configures one generate_aggregated_report call.
type ReportRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	// ExpectedTestsPerHour is the baseline used to compute DataCompleteness.
	// Zero disables the check (DataCompleteness is reported as 1.0).
	ExpectedTestsPerHour float64 `json:"expected_tests_per_hour,omitempty"`
}

// AggregatedResults is the complete output of generate_aggregated_report.
type AggregatedResults struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Overall          TestSummary                        `json:"overall"`
	ByTestType       map[contracts.TestType]TestSummary `json:"by_test_type"`
	ByService        map[string]TestSummary             `json:"by_service"`
	Performance      PerformanceSummary                 `json:"performance"`
	Trends           []Trend                            `json:"trends,omitempty"`
	Anomalies        []Anomaly                           `json:"anomalies,omitempty"`
	Insights         []QualityInsight                   `json:"quality_insights,omitempty"`
	TopFailures      []FailureEntry                     `json:"top_failures,omitempty"`
	TopPerformers    []PerformerEntry                   `json:"top_performers,omitempty"`
	Recommendations  []string                           `json:"recommendations,omitempty"`
	DataCompleteness float64                            `json:"data_completeness"`

	GeneratedAt time.Time `json:"generated_at"`
}
