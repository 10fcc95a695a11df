package qualityjudge

import (
	"context"
	"strings"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// ReferenceJudge is a deterministic, backend-free Judge used in tests and
// as the safe default when no LLM endpoint is configured (replacing the
// teacher's hard-coded stub model with the same contract shape, per the
// §9 open-question decision recorded in DESIGN.md). Its score is a
// simple heuristic — rising with output length (the prompt is not
// consulted), bounded — not a quality judgment; it exists to exercise the
// Judge contract and the strategy/cache machinery without a live model.
type ReferenceJudge struct {
	name string
}

// NewReferenceJudge constructs a ReferenceJudge named name (distinct
// names let ENSEMBLE/MULTI strategies combine more than one reference
// instance in tests).
func NewReferenceJudge(name string) *ReferenceJudge {
	return &ReferenceJudge{name: name}
}

func (j *ReferenceJudge) Name() string { return j.name }

func (j *ReferenceJudge) Assess(ctx context.Context, req AssessRequest) contracts.QualityScore {
	output := strings.TrimSpace(req.AIOutput)
	if output == "" {
		return fallbackScore(req.Metric, "empty AI output")
	}

	score := heuristicScore(req.Metric, output)
	return contracts.QualityScore{
		Metric:     req.Metric,
		Score:      score,
		Confidence: 0.6,
		Rationale:  "reference judge heuristic score for " + string(req.Metric),
	}
}

// heuristicScore maps output characteristics to a bounded [0,1] score,
// varying slightly per metric so strategy combination logic (ensemble
// weighting, specialized round-robin) has non-identical inputs to
// combine in tests.
func heuristicScore(metric contracts.QualityMetric, output string) float64 {
	length := float64(len(output))
	base := length / (length + 200.0) // asymptotic toward 1.0 as output lengthens

	switch metric {
	case contracts.MetricSafety:
		if strings.Contains(strings.ToLower(output), "harm") {
			return 0.2
		}
		return 0.9
	case contracts.MetricCreativity:
		return clamp01(base * 0.8)
	default:
		return clamp01(base)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
