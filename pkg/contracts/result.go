package contracts

import "time"

// ErrorType classifies why an execution failed, per the platform's
// error taxonomy. Empty on a passing result.
const (
	ErrorTypeTimeout    = "TIMEOUT"
	ErrorTypeNetwork    = "NETWORK"
	ErrorTypeValidation = "VALIDATION"
	ErrorTypeCapacity   = "CAPACITY"
	ErrorTypeInternal   = "INTERNAL"
)

// TestResult is the outcome of one TestExecution, independent of which
// executor produced it. Score is computed by the producing executor per
// its own rubric and is authoritative for that executor.
type TestResult struct {
	ExecutionID string   `json:"execution_id"`
	ScenarioID  string   `json:"scenario_id"`
	TestType    TestType `json:"test_type"`

	Passed   bool          `json:"passed"`
	Score    float64       `json:"score"`
	Duration time.Duration `json:"duration"`

	APIResult     *APIResultDetail     `json:"api_result,omitempty"`
	UIResult      *UIResultDetail      `json:"ui_result,omitempty"`
	QualityResult *QualityAssessmentResult `json:"quality_result,omitempty"`

	QualityScores      map[QualityMetric]float64 `json:"quality_scores,omitempty"`
	PerformanceMetrics map[string]float64        `json:"performance_metrics,omitempty"`

	ErrorType      string            `json:"error_type,omitempty"`
	FailureReasons []string          `json:"failure_reasons,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// APIResultDetail is the C3 API tester's type-specific result payload.
// The four validations are independent booleans; Passed on the enclosing
// TestResult is their conjunction plus the response-time check.
type APIResultDetail struct {
	ActualStatus   int               `json:"actual_status"`
	ResponseTimeMs int64             `json:"response_time_ms"`
	ResponseBody   interface{}       `json:"response_body,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	StatusValid    bool              `json:"status_validation"`
	SchemaValid    bool              `json:"schema_validation"`
	HeadersValid   bool              `json:"headers_validation"`
	ContentValid   bool              `json:"content_validation"`
	SecurityNotes  []string          `json:"security_notes,omitempty"`

	// LoadTest is populated only when the scenario requested run_load_test.
	LoadTest *LoadTestStats `json:"load_test,omitempty"`
}

// LoadTestStats summarizes a concurrent API load test run.
type LoadTestStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	P50LatencyMs       float64 `json:"p50_latency_ms"`
	P95LatencyMs       float64 `json:"p95_latency_ms"`
	P99LatencyMs       float64 `json:"p99_latency_ms"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
}

// UIResultDetail is the C4 browser tester's type-specific result payload.
type UIResultDetail struct {
	ActionsExecuted    int      `json:"actions_executed"`
	AssertionsPassed   int      `json:"assertions_passed"`
	AssertionsFailed   int      `json:"assertions_failed"`
	VisualDiffRatio    float64  `json:"visual_diff_ratio,omitempty"`
	VisualMatch        bool     `json:"visual_match"`
	VisualBaseline     bool     `json:"visual_baseline,omitempty"`
	AccessibilityIssues []AccessibilityIssue `json:"accessibility_issues,omitempty"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`
	ResponsiveResults  []ResponsiveViewportResult `json:"responsive_results,omitempty"`
	ResponsiveScore    float64  `json:"responsive_score,omitempty"`
	ScreenshotPath     string   `json:"screenshot_path,omitempty"`
}

// ResponsiveViewportResult is one viewport preset's layout-check outcome
// in the browser tester's responsive sub-suite.
type ResponsiveViewportResult struct {
	Viewport string          `json:"viewport"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Checks   map[string]bool `json:"checks"`
	Score    float64         `json:"score"`
}

// AccessibilityIssue is one WCAG rule violation found during an audit.
type AccessibilityIssue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Selector string `json:"selector"`
	Message  string `json:"message"`
}

// QualityScore is one metric's judged value plus its rationale.
type QualityScore struct {
	Metric     QualityMetric `json:"metric"`
	Score      float64       `json:"score"`
	Rationale  string        `json:"rationale,omitempty"`
	Confidence float64       `json:"confidence"`
}

// JudgeStrategy is one of the C5 quality judge's assessment strategies.
type JudgeStrategy string

const (
	StrategySingle      JudgeStrategy = "SINGLE"
	StrategyMulti       JudgeStrategy = "MULTI"
	StrategyEnsemble    JudgeStrategy = "ENSEMBLE"
	StrategySpecialized JudgeStrategy = "SPECIALIZED"
	StrategyComparative JudgeStrategy = "COMPARATIVE"
)

// QualityAssessmentResult is the C5 quality judge's full verdict on one
// AI_QUALITY scenario, including per-metric scores and the composite.
type QualityAssessmentResult struct {
	Strategy     JudgeStrategy            `json:"strategy"`
	Scores       []QualityScore           `json:"scores"`
	OverallScore float64                  `json:"overall_score"`
	ThresholdsMet map[QualityMetric]bool  `json:"thresholds_met,omitempty"`
	ModelsUsed   []string                 `json:"models_used"`
	CacheHit     bool                     `json:"cache_hit"`
	AssessedAt   time.Time                `json:"assessed_at"`
}
