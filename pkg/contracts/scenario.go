// Package contracts defines the typed scenario/result/alert schemas shared
// by every component of the platform: the Scenario Manager, the four
// executors, the aggregator, the alert engine and the orchestrator all
// exchange these types instead of untyped maps, with boundary validation
// enforcing the discriminated union between TestType and its config.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// TestType discriminates which config sub-spec a TestScenario carries.
type TestType string

const (
	TestTypeAPI           TestType = "API"
	TestTypeUI            TestType = "UI"
	TestTypeAIQuality     TestType = "AI_QUALITY"
	TestTypeIntegration   TestType = "INTEGRATION"
	TestTypePerformance   TestType = "PERFORMANCE"
	TestTypeSecurity      TestType = "SECURITY"
	TestTypeAccessibility TestType = "ACCESSIBILITY"
)

// QualityMetric is one of the six bounded [0,1] score axes over AI output
// quality.
type QualityMetric string

const (
	MetricCoherence   QualityMetric = "COHERENCE"
	MetricCreativity  QualityMetric = "CREATIVITY"
	MetricAccuracy    QualityMetric = "ACCURACY"
	MetricSafety      QualityMetric = "SAFETY"
	MetricRelevance   QualityMetric = "RELEVANCE"
	MetricConsistency QualityMetric = "CONSISTENCY"
)

// AllQualityMetrics lists every defined QualityMetric, in a stable order
// used wherever a deterministic iteration order matters (cache keys,
// round-robin assignment in the SPECIALIZED judge strategy).
var AllQualityMetrics = []QualityMetric{
	MetricSafety, MetricAccuracy, MetricCoherence,
	MetricRelevance, MetricConsistency, MetricCreativity,
}

// DefaultMetricWeights are the overall_score weights from the quality
// judge's scoring aggregation rule; they sum to 1.0 and are overridable
// per request.
var DefaultMetricWeights = map[QualityMetric]float64{
	MetricSafety:      0.25,
	MetricAccuracy:    0.20,
	MetricCoherence:   0.15,
	MetricRelevance:   0.15,
	MetricConsistency: 0.15,
	MetricCreativity:  0.10,
}

// Environment is the deployment environment a TestContext runs against.
type Environment string

const (
	EnvironmentTest       Environment = "test"
	EnvironmentStaging    Environment = "staging"
	EnvironmentProduction Environment = "production"
	EnvironmentDebug      Environment = "debug"
)

// PathParams substitutes {name}-style path parameters into an endpoint
// before the API tester issues the request.
type PathParams map[string]string

// APITestSpec is the type-specific config for a TestTypeAPI scenario.
type APITestSpec struct {
	Endpoint                string            `json:"endpoint" yaml:"endpoint"`
	Method                  string            `json:"method" yaml:"method"`
	Headers                 map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams             map[string]string `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	PathParams              PathParams        `json:"path_params,omitempty" yaml:"path_params,omitempty"`
	RequestBody             interface{}       `json:"request_body,omitempty" yaml:"request_body,omitempty"`
	ExpectedStatus          int               `json:"expected_status" yaml:"expected_status"`
	ExpectedResponseSchema  map[string]interface{} `json:"expected_response_schema,omitempty" yaml:"expected_response_schema,omitempty"`
	// ExpectedHeaders names response headers that must be present, each
	// with an optional required value ("" accepts any value). Empty map
	// means headers_validation is vacuously true.
	ExpectedHeaders map[string]string `json:"expected_headers,omitempty" yaml:"expected_headers,omitempty"`
	// ExpectedBodyContains lists substrings the raw response body must
	// contain. Empty means content_validation is vacuously true.
	ExpectedBodyContains    []string `json:"expected_body_contains,omitempty" yaml:"expected_body_contains,omitempty"`
	ResponseTimeThresholdMs int      `json:"response_time_threshold_ms" yaml:"response_time_threshold_ms"`
	// RetryDelaySeconds spaces retry attempts: attempt N sleeps
	// RetryDelaySeconds × N before re-issuing. Zero retries immediately.
	RetryDelaySeconds float64 `json:"retry_delay_seconds,omitempty" yaml:"retry_delay_seconds,omitempty"`
}

// ViewportSize is a browser viewport's dimensions in CSS pixels.
type ViewportSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DeviceType narrows the viewport/touch emulation profile a UI scenario
// runs under.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// BrowserType selects the engine a UI scenario is driven against.
type BrowserType string

const (
	BrowserChromium BrowserType = "chromium"
	BrowserFirefox  BrowserType = "firefox"
	BrowserWebkit   BrowserType = "webkit"
)

// ActionType is one of the browser tester's DSL operations.
type ActionType string

const (
	ActionClick  ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionSelect ActionType = "select"
	ActionHover  ActionType = "hover"
	ActionWait   ActionType = "wait"
	ActionScroll ActionType = "scroll"
	ActionPress  ActionType = "press"
)

// Action is one step of a UI scenario's ordered action sequence.
type Action struct {
	Type     ActionType    `json:"type" yaml:"type"`
	Selector string        `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string        `json:"value,omitempty" yaml:"value,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AssertionType is one of the browser tester's DSL checks.
type AssertionType string

const (
	AssertVisible AssertionType = "visible"
	AssertHidden  AssertionType = "hidden"
	AssertText    AssertionType = "text"
	AssertValue   AssertionType = "value"
	AssertCount   AssertionType = "count"
	AssertURL     AssertionType = "url"
	AssertTitle   AssertionType = "title"
)

// Assertion is one step of a UI scenario's ordered assertion sequence,
// evaluated after all actions complete.
type Assertion struct {
	Type          AssertionType `json:"type" yaml:"type"`
	Selector      string        `json:"selector,omitempty" yaml:"selector,omitempty"`
	ExpectedValue string        `json:"expected_value,omitempty" yaml:"expected_value,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// UITestSpec is the type-specific config for a TestTypeUI scenario.
type UITestSpec struct {
	PageURL                string        `json:"page_url" yaml:"page_url"`
	ViewportSize           ViewportSize  `json:"viewport_size" yaml:"viewport_size"`
	DeviceType             DeviceType    `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Browser                BrowserType   `json:"browser" yaml:"browser"`
	Actions                []Action      `json:"actions,omitempty" yaml:"actions,omitempty"`
	Assertions             []Assertion   `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	ScreenshotComparison   bool          `json:"screenshot_comparison" yaml:"screenshot_comparison"`
	VisualThreshold        float64       `json:"visual_threshold" yaml:"visual_threshold"`
	PerformanceMetrics     []string      `json:"performance_metrics,omitempty" yaml:"performance_metrics,omitempty"`
	AccessibilityStandards []string      `json:"accessibility_standards,omitempty" yaml:"accessibility_standards,omitempty"`
}

// AIQualitySpec is the type-specific config for a TestTypeAIQuality
// scenario.
type AIQualitySpec struct {
	InputPrompt      string          `json:"input_prompt" yaml:"input_prompt"`
	ContextData      string          `json:"context_data,omitempty" yaml:"context_data,omitempty"`
	AssessmentModels []string        `json:"assessment_models" yaml:"assessment_models"`
	QualityMetrics   []QualityMetric `json:"quality_metrics" yaml:"quality_metrics"`
	ReferenceOutputs []string        `json:"reference_outputs,omitempty" yaml:"reference_outputs,omitempty"`
	BaselineScores   map[QualityMetric]float64 `json:"baseline_scores,omitempty" yaml:"baseline_scores,omitempty"`
	Temperature      float64         `json:"temperature" yaml:"temperature"`
	MaxTokens        int             `json:"max_tokens" yaml:"max_tokens"`
}

// TestScenarioConfig is the discriminated-union payload: exactly the field
// matching TestType is expected to be non-nil.
type TestScenarioConfig struct {
	API       *APITestSpec   `json:"api,omitempty" yaml:"api,omitempty"`
	UI        *UITestSpec    `json:"ui,omitempty" yaml:"ui,omitempty"`
	AIQuality *AIQualitySpec `json:"ai_quality,omitempty" yaml:"ai_quality,omitempty"`
}

// TestScenario is the unit of intent: a stable, immutable definition of
// what to test, parametrised by TestType and Config.
type TestScenario struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	TestType       TestType           `json:"test_type" yaml:"test_type"`
	Priority       int                `json:"priority" yaml:"priority"`
	TimeoutSeconds int                `json:"timeout_seconds" yaml:"timeout_seconds"`
	RetryCount     int                `json:"retry_count" yaml:"retry_count"`

	Config TestScenarioConfig `json:"config" yaml:"config"`

	ExpectedOutcomes      []string                 `json:"expected_outcomes,omitempty" yaml:"expected_outcomes,omitempty"`
	QualityThresholds     map[QualityMetric]float64 `json:"quality_thresholds,omitempty" yaml:"quality_thresholds,omitempty"`
	PerformanceThresholds map[string]float64        `json:"performance_thresholds,omitempty" yaml:"performance_thresholds,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewScenarioID mints a fresh scenario identifier.
func NewScenarioID() string {
	return uuid.NewString()
}

// TestContext is threaded through every execution and treated as read-only
// by executors.
type TestContext struct {
	SessionID   string            `json:"session_id"`
	UserID      string            `json:"user_id,omitempty"`
	Environment Environment       `json:"environment"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
}

// BaseURL returns context.metadata.base_url, or "" if unset.
func (c TestContext) BaseURL() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["base_url"]
}
