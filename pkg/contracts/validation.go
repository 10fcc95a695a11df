package contracts

import (
	"strconv"
	"strings"

	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// Validate enforces the discriminated union between TestType and Config,
// plus the cross-field invariants each sub-spec requires. It returns a
// typed input error (sharederrors.KindInput) describing the first
// violation found.
func (s *TestScenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return sharederrors.ValidationError("id", "must not be empty")
	}
	if strings.TrimSpace(s.Name) == "" {
		return sharederrors.ValidationError("name", "must not be empty")
	}
	if s.TimeoutSeconds <= 0 {
		return sharederrors.ValidationError("timeout_seconds", "must be positive")
	}
	if s.RetryCount < 0 {
		return sharederrors.ValidationError("retry_count", "must not be negative")
	}

	switch s.TestType {
	case TestTypeAPI:
		if s.Config.API == nil {
			return sharederrors.ValidationError("config.api", "required when test_type is API")
		}
		if s.Config.UI != nil || s.Config.AIQuality != nil {
			return sharederrors.ValidationError("config", "only one of api/ui/ai_quality may be set")
		}
		return validateAPISpec(s.Config.API)
	case TestTypeUI, TestTypeAccessibility:
		if s.Config.UI == nil {
			return sharederrors.ValidationError("config.ui", "required when test_type is UI or ACCESSIBILITY")
		}
		if s.Config.API != nil || s.Config.AIQuality != nil {
			return sharederrors.ValidationError("config", "only one of api/ui/ai_quality may be set")
		}
		return validateUISpec(s.Config.UI)
	case TestTypeAIQuality:
		if s.Config.AIQuality == nil {
			return sharederrors.ValidationError("config.ai_quality", "required when test_type is AI_QUALITY")
		}
		if s.Config.API != nil || s.Config.UI != nil {
			return sharederrors.ValidationError("config", "only one of api/ui/ai_quality may be set")
		}
		return validateAIQualitySpec(s.Config.AIQuality)
	case TestTypeIntegration, TestTypePerformance, TestTypeSecurity:
		// Composite types may carry either an API or UI config (or both,
		// for an end-to-end flow); at least one must be present.
		if s.Config.API == nil && s.Config.UI == nil {
			return sharederrors.ValidationError("config", "INTEGRATION/PERFORMANCE/SECURITY requires api and/or ui config")
		}
		if s.Config.API != nil {
			if err := validateAPISpec(s.Config.API); err != nil {
				return err
			}
		}
		if s.Config.UI != nil {
			if err := validateUISpec(s.Config.UI); err != nil {
				return err
			}
		}
		return nil
	default:
		return sharederrors.ValidationError("test_type", "unknown test type: "+string(s.TestType))
	}
}

// Validate checks the sub-spec's own invariants, independent of any
// enclosing TestScenario. The HTTP surfaces accept bare sub-specs
// (POST /test, POST /execute) and validate them with these before
// running anything.
func (spec *APITestSpec) Validate() error { return validateAPISpec(spec) }

// Validate checks the UI sub-spec's own invariants.
func (spec *UITestSpec) Validate() error { return validateUISpec(spec) }

// Validate checks the AI-quality sub-spec's own invariants.
func (spec *AIQualitySpec) Validate() error { return validateAIQualitySpec(spec) }

func validateAPISpec(spec *APITestSpec) error {
	if strings.TrimSpace(spec.Endpoint) == "" {
		return sharederrors.ValidationError("config.api.endpoint", "must not be empty")
	}
	method := strings.ToUpper(spec.Method)
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return sharederrors.ValidationError("config.api.method", "unsupported HTTP method: "+spec.Method)
	}
	if spec.ExpectedStatus < 100 || spec.ExpectedStatus > 599 {
		return sharederrors.ValidationError("config.api.expected_status", "must be a valid HTTP status code")
	}
	return nil
}

func validateUISpec(spec *UITestSpec) error {
	if strings.TrimSpace(spec.PageURL) == "" {
		return sharederrors.ValidationError("config.ui.page_url", "must not be empty")
	}
	switch spec.Browser {
	case BrowserChromium, BrowserFirefox, BrowserWebkit:
	case "":
		return sharederrors.ValidationError("config.ui.browser", "must not be empty")
	default:
		return sharederrors.ValidationError("config.ui.browser", "unsupported browser: "+string(spec.Browser))
	}
	if spec.ViewportSize.Width <= 0 || spec.ViewportSize.Height <= 0 {
		return sharederrors.ValidationError("config.ui.viewport_size", "width and height must be positive")
	}
	if spec.ScreenshotComparison && (spec.VisualThreshold < 0 || spec.VisualThreshold > 1) {
		return sharederrors.ValidationError("config.ui.visual_threshold", "must be between 0 and 1")
	}
	for i, a := range spec.Actions {
		if a.Type == "" {
			return sharederrors.ValidationError("config.ui.actions["+strconv.Itoa(i)+"].type", "must not be empty")
		}
	}
	return nil
}

func validateAIQualitySpec(spec *AIQualitySpec) error {
	if strings.TrimSpace(spec.InputPrompt) == "" {
		return sharederrors.ValidationError("config.ai_quality.input_prompt", "must not be empty")
	}
	if len(spec.AssessmentModels) == 0 {
		return sharederrors.ValidationError("config.ai_quality.assessment_models", "must specify at least one model")
	}
	if len(spec.QualityMetrics) == 0 {
		return sharederrors.ValidationError("config.ai_quality.quality_metrics", "must specify at least one metric")
	}
	for _, m := range spec.QualityMetrics {
		if !isKnownMetric(m) {
			return sharederrors.ValidationError("config.ai_quality.quality_metrics", "unknown metric: "+string(m))
		}
	}
	if spec.Temperature < 0 || spec.Temperature > 2 {
		return sharederrors.ValidationError("config.ai_quality.temperature", "must be between 0 and 2")
	}
	return nil
}

func isKnownMetric(m QualityMetric) bool {
	for _, known := range AllQualityMetrics {
		if known == m {
			return true
		}
	}
	return false
}
