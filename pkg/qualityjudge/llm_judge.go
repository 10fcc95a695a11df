package qualityjudge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/resilience"
)

// llmResponse is the strict JSON object a backend model is prompted to
// return.
type llmResponse struct {
	Score       float64  `json:"score"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Evidence    []string `json:"evidence"`
	Suggestions []string `json:"suggestions"`
}

// LLMJudge is a Judge backed by any langchaingo llms.Model (OpenAI,
// Anthropic, local, ...), guarded by a circuit breaker so a wedged
// backend degrades to the fallback score instead of blocking every
// subsequent assessment.
type LLMJudge struct {
	name    string
	model   llms.Model
	breaker *resilience.GobreakerAdapter
}

// NewLLMJudge builds an LLMJudge named name, calling model through a
// gobreaker-backed circuit breaker that trips after 3 consecutive
// failures.
func NewLLMJudge(name string, model llms.Model) *LLMJudge {
	return &LLMJudge{
		name:    name,
		model:   model,
		breaker: resilience.NewGobreakerAdapter(name, 3, 30*time.Second),
	}
}

func (j *LLMJudge) Name() string { return j.name }

func (j *LLMJudge) Assess(ctx context.Context, req AssessRequest) contracts.QualityScore {
	prompt := PromptTemplate(req.Metric, req.InputPrompt, req.AIOutput, req.Context)

	var raw string
	err := j.breaker.Call(func() error {
		completion, callErr := llms.GenerateFromSinglePrompt(ctx, j.model, prompt)
		if callErr != nil {
			return callErr
		}
		raw = completion
		return nil
	})
	if err != nil {
		return fallbackScore(req.Metric, err.Error())
	}

	parsed, err := parseLLMResponse(raw)
	if err != nil {
		return fallbackScore(req.Metric, err.Error())
	}

	return contracts.QualityScore{
		Metric:     req.Metric,
		Score:      clamp01(parsed.Score),
		Confidence: clamp01(parsed.Confidence),
		Rationale:  parsed.Reasoning,
	}
}

// parseLLMResponse extracts the JSON object from raw, tolerating
// surrounding prose/markdown fences some backends wrap their output in.
func parseLLMResponse(raw string) (*llmResponse, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return nil, errNoJSONObject
	}
	var resp llmResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

var errNoJSONObject = errors.New("backend response did not contain a JSON object")
