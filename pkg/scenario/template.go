package scenario

import (
	"strconv"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// Template generates a TestScenario of a fixed shape from a small set of
// named parameters, so common cases (a health probe, a login flow, a
// quality check on a prompt) don't require hand-writing the full config
// every time.
type Template interface {
	Name() string
	Generate(params map[string]string) (*contracts.TestScenario, error)
}

// HealthProbeTemplate builds an APITestSpec scenario that GETs params["path"]
// (default "/health") and expects a 200 within params["timeout_ms"]
// (default 1000ms).
type HealthProbeTemplate struct{}

func (HealthProbeTemplate) Name() string { return "health_probe" }

func (HealthProbeTemplate) Generate(params map[string]string) (*contracts.TestScenario, error) {
	path := valueOr(params, "path", "/health")
	thresholdMs := intOr(params, "timeout_ms", 1000)

	return &contracts.TestScenario{
		ID:             contracts.NewScenarioID(),
		Name:           "health probe " + path,
		Description:    "Verifies " + path + " returns 200 within the configured threshold",
		TestType:       contracts.TestTypeAPI,
		TimeoutSeconds: 30,
		RetryCount:     1,
		Config: contracts.TestScenarioConfig{
			API: &contracts.APITestSpec{
				Endpoint:                path,
				Method:                  "GET",
				ExpectedStatus:          200,
				ResponseTimeThresholdMs: thresholdMs,
			},
		},
	}, nil
}

// LoginFlowTemplate builds a UITestSpec scenario that visits params["url"],
// fills a username/password form and asserts the dashboard URL loads.
type LoginFlowTemplate struct{}

func (LoginFlowTemplate) Name() string { return "login_flow" }

func (LoginFlowTemplate) Generate(params map[string]string) (*contracts.TestScenario, error) {
	url := valueOr(params, "url", "https://example.com/login")
	username := valueOr(params, "username", "")
	password := valueOr(params, "password", "")

	return &contracts.TestScenario{
		ID:             contracts.NewScenarioID(),
		Name:           "login flow",
		Description:    "Exercises the login form at " + url,
		TestType:       contracts.TestTypeUI,
		TimeoutSeconds: 60,
		RetryCount:     0,
		Config: contracts.TestScenarioConfig{
			UI: &contracts.UITestSpec{
				PageURL:      url,
				Browser:      contracts.BrowserChromium,
				ViewportSize: contracts.ViewportSize{Width: 1280, Height: 720},
				Actions: []contracts.Action{
					{Type: contracts.ActionTypeText, Selector: "#username", Value: username},
					{Type: contracts.ActionTypeText, Selector: "#password", Value: password},
					{Type: contracts.ActionClick, Selector: "#submit"},
				},
				Assertions: []contracts.Assertion{
					{Type: contracts.AssertURL, ExpectedValue: "dashboard"},
				},
			},
		},
	}, nil
}

// PromptQualityTemplate builds an AI_QUALITY scenario assessing
// params["prompt"] against every known metric, with params["model"]
// (default "reference") as the assessment model. A params["metrics"]
// entry is not read.
type PromptQualityTemplate struct{}

func (PromptQualityTemplate) Name() string { return "prompt_quality" }

func (PromptQualityTemplate) Generate(params map[string]string) (*contracts.TestScenario, error) {
	prompt := valueOr(params, "prompt", "")
	model := valueOr(params, "model", "reference")

	return &contracts.TestScenario{
		ID:             contracts.NewScenarioID(),
		Name:           "prompt quality check",
		Description:    "Assesses AI output quality for a fixed prompt",
		TestType:       contracts.TestTypeAIQuality,
		TimeoutSeconds: 60,
		RetryCount:     0,
		Config: contracts.TestScenarioConfig{
			AIQuality: &contracts.AIQualitySpec{
				InputPrompt:      prompt,
				AssessmentModels: []string{model},
				QualityMetrics:   contracts.AllQualityMetrics,
				Temperature:      0.7,
				MaxTokens:        512,
			},
		},
	}, nil
}

// Registry resolves template names to Template implementations.
var Registry = map[string]Template{
	"health_probe":    HealthProbeTemplate{},
	"login_flow":      LoginFlowTemplate{},
	"prompt_quality":  PromptQualityTemplate{},
}

func valueOr(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}

func intOr(params map[string]string, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
