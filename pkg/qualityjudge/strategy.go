package qualityjudge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// AssessmentRequest is the full request for one quality assessment:
// score AIOutput against every listed metric, combined per Strategy.
type AssessmentRequest struct {
	InputPrompt string
	AIOutput    string
	Context     string
	Metrics     []contracts.QualityMetric
	Strategy    contracts.JudgeStrategy
	Weights     map[contracts.QualityMetric]float64
}

// Engine runs AssessmentRequests against a set of configured Judges,
// combining per-judge per-metric scores according to Strategy. When a
// Cache is attached, identical requests within the cache TTL are served
// without re-invoking any judge.
type Engine struct {
	judges []Judge
	cache  *Cache
}

// NewEngine builds an Engine over judges. At least one judge is required;
// Assess returns a configuration error otherwise ("no
// judges available" is a hard configuration error).
func NewEngine(judges ...Judge) *Engine {
	return &Engine{judges: judges}
}

// WithCache attaches a result cache to the engine and returns it for
// chaining.
func (e *Engine) WithCache(cache *Cache) *Engine {
	e.cache = cache
	return e
}

// ErrNoJudgesAvailable is returned by Assess when the engine has no
// configured judges — a hard configuration error, never a per-request
// fallback.
var ErrNoJudgesAvailable = fmt.Errorf("no judges available")

// Assess scores req across every requested metric using the selected
// strategy, and returns the composite QualityAssessmentResult.
func (e *Engine) Assess(ctx context.Context, req AssessmentRequest) (*contracts.QualityAssessmentResult, error) {
	if len(e.judges) == 0 {
		return nil, ErrNoJudgesAvailable
	}

	var cacheKey string
	if e.cache != nil {
		cacheKey = CacheKey(req.InputPrompt, req.AIOutput, req.Metrics, req.Strategy)
		if cached, ok := e.cache.Get(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	var scores []contracts.QualityScore
	switch req.Strategy {
	case contracts.StrategyMulti, contracts.StrategyComparative:
		scores = e.multiJudge(ctx, req)
	case contracts.StrategyEnsemble:
		scores = e.ensemble(ctx, req)
	case contracts.StrategySpecialized:
		scores = e.specialized(ctx, req)
	default:
		scores = e.single(ctx, req)
	}

	weights := req.Weights
	if weights == nil {
		weights = contracts.DefaultMetricWeights
	}

	modelsUsed := make([]string, 0, len(e.judges))
	for _, j := range e.judges {
		modelsUsed = append(modelsUsed, j.Name())
	}

	result := &contracts.QualityAssessmentResult{
		Strategy:     req.Strategy,
		Scores:       scores,
		OverallScore: weightedOverall(scores, weights),
		ModelsUsed:   modelsUsed,
		AssessedAt:   time.Now(),
	}

	if e.cache != nil {
		e.cache.Put(ctx, cacheKey, *result)
	}
	return result, nil
}

// single evaluates every requested metric with e.judges[0] only.
func (e *Engine) single(ctx context.Context, req AssessmentRequest) []contracts.QualityScore {
	judge := e.judges[0]
	out := make([]contracts.QualityScore, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		out = append(out, judge.Assess(ctx, AssessRequest{
			InputPrompt: req.InputPrompt, AIOutput: req.AIOutput, Context: req.Context, Metric: m,
		}))
	}
	return out
}

// multiJudge evaluates every metric with every judge, preserving each
// judge's individual score (no combination).
func (e *Engine) multiJudge(ctx context.Context, req AssessmentRequest) []contracts.QualityScore {
	var out []contracts.QualityScore
	for _, m := range req.Metrics {
		for _, judge := range e.judges {
			score := judge.Assess(ctx, AssessRequest{
				InputPrompt: req.InputPrompt, AIOutput: req.AIOutput, Context: req.Context, Metric: m,
			})
			out = append(out, score)
		}
	}
	return out
}

// ensemble evaluates every metric with every judge like multiJudge, then
// combines per metric by confidence-weighted average, concatenating
// reasoning.
func (e *Engine) ensemble(ctx context.Context, req AssessmentRequest) []contracts.QualityScore {
	out := make([]contracts.QualityScore, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		var perJudge []contracts.QualityScore
		for _, judge := range e.judges {
			perJudge = append(perJudge, judge.Assess(ctx, AssessRequest{
				InputPrompt: req.InputPrompt, AIOutput: req.AIOutput, Context: req.Context, Metric: m,
			}))
		}
		out = append(out, combineEnsemble(m, perJudge))
	}
	return out
}

func combineEnsemble(metric contracts.QualityMetric, perJudge []contracts.QualityScore) contracts.QualityScore {
	if len(perJudge) == 0 {
		return fallbackScore(metric, "no judge scores to combine")
	}

	allFailed := true
	var weightedSum, weightSum, confidenceSum float64
	var reasons []string
	for _, s := range perJudge {
		if s.Confidence >= 0.2 {
			allFailed = false
		}
		weightedSum += s.Score * s.Confidence
		weightSum += s.Confidence
		confidenceSum += s.Confidence
		if s.Rationale != "" {
			reasons = append(reasons, s.Rationale)
		}
	}
	if allFailed {
		return fallbackScore(metric, "all judges failed for this metric")
	}

	score := 0.0
	if weightSum > 0 {
		score = weightedSum / weightSum
	}
	return contracts.QualityScore{
		Metric:     metric,
		Score:      clamp01(score),
		Confidence: clamp01(confidenceSum / float64(len(perJudge))),
		Rationale:  strings.Join(reasons, " | "),
	}
}

// specialized round-robin assigns each metric to one judge, deterministic
// given req.Metrics' order and e.judges' order.
func (e *Engine) specialized(ctx context.Context, req AssessmentRequest) []contracts.QualityScore {
	metrics := append([]contracts.QualityMetric(nil), req.Metrics...)
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	out := make([]contracts.QualityScore, 0, len(metrics))
	for i, m := range metrics {
		judge := e.judges[i%len(e.judges)]
		out = append(out, judge.Assess(ctx, AssessRequest{
			InputPrompt: req.InputPrompt, AIOutput: req.AIOutput, Context: req.Context, Metric: m,
		}))
	}
	return out
}

func weightedOverall(scores []contracts.QualityScore, weights map[contracts.QualityMetric]float64) float64 {
	// When a strategy produced more than one score per metric (MULTI_JUDGE),
	// average them first so overall_score still reflects one value per
	// metric, matching the Σ(metric_score × metric_weight)/Σ(metric_weight)
	// formula.
	sums := make(map[contracts.QualityMetric]float64)
	counts := make(map[contracts.QualityMetric]int)
	for _, s := range scores {
		sums[s.Metric] += s.Score
		counts[s.Metric]++
	}

	var weightedSum, weightSum float64
	for metric, sum := range sums {
		avg := sum / float64(counts[metric])
		w, ok := weights[metric]
		if !ok {
			w = 0
		}
		weightedSum += avg * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}
