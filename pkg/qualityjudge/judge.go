// Package qualityjudge implements the quality judge (C5): LLM-as-judge
// scoring of AI outputs across QualityMetric dimensions, strategy-based
// multi-judge combination, and a content-addressed result cache.
package qualityjudge

import (
	"context"
	"fmt"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// AssessRequest is one call into a Judge: score ai_output for one metric,
// given the original prompt and any supporting context.
type AssessRequest struct {
	InputPrompt string
	AIOutput    string
	Metric      contracts.QualityMetric
	Context     string
}

// Judge encapsulates one backend model and exposes a single operation:
// assess one metric for one (prompt, output) pair. Assess has no error
// return: on a backend/parse failure implementations return the
// fallback score described below instead.
type Judge interface {
	Name() string
	Assess(ctx context.Context, req AssessRequest) contracts.QualityScore
}

// fallbackScore is the standard response to any backend or
// parse failure: never an exception, always a low-confidence low-quality
// record the orchestrator can still reason about.
func fallbackScore(metric contracts.QualityMetric, reason string) contracts.QualityScore {
	return contracts.QualityScore{
		Metric:     metric,
		Score:      0.5,
		Confidence: 0.1,
		Rationale:  fmt.Sprintf("assessment failed: %s", reason),
	}
}

// PromptTemplate returns the deterministic per-metric prompt template an
// LLM-backed Judge sends to its backend.
func PromptTemplate(metric contracts.QualityMetric, inputPrompt, aiOutput, context string) string {
	return fmt.Sprintf(
		"You are evaluating AI output quality along the %s dimension.\n"+
			"Original prompt: %s\nContext: %s\nAI output: %s\n"+
			"Respond with a strict JSON object: "+
			`{"score": <0..1>, "confidence": <0..1>, "reasoning": "<text>", "evidence": [...], "suggestions": [...]}`,
		metric, inputPrompt, context, aiOutput,
	)
}
