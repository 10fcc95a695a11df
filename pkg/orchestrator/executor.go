package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/qualitymesh/aat-core/pkg/apitester"
	"github.com/qualitymesh/aat-core/pkg/browsertester"
	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/qualityjudge"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// phaseRunner executes every scenario in one phase and returns its
// PhaseOutcome. Each of the three concrete runners below adapts one
// executor's native Execute signature to this shape, stamping the
// ExecutionID/ScenarioID/RecordedAt fields the underlying executors
// leave unset.
type phaseRunner func(ctx context.Context, testCtx contracts.TestContext, scenarios []*contracts.TestScenario) PhaseOutcome

// Runners bundles the three executors a Session needs, one per
// concurrent phase. A nil field means that phase is never exercised by
// this orchestrator build; BuildPlan already rejects scenarios of a
// TestType with no phase mapping, but a Runners value missing the
// matching executor surfaces as a PhaseOutcome error instead of a panic.
type Runners struct {
	API     *apitester.Executor
	UI      *browsertester.Executor
	Quality *qualityjudge.Engine
}

// Execute runs one phase's scenarios with whichever executor Runners has
// wired for it. A phase with no executor wired returns a PhaseOutcome
// carrying a configuration error rather than panicking — BuildPlan only
// checks that a TestType maps to a phase, not that this particular
// Runners value has the matching executor attached.
func (r Runners) Execute(ctx context.Context, phase PhaseName, testCtx contracts.TestContext, scenarios []*contracts.TestScenario) PhaseOutcome {
	runner := r.runnerFor(phase)
	if runner == nil {
		return PhaseOutcome{Error: sharederrors.ConfigurationError("orchestrator.runners", "no executor wired for "+string(phase))}
	}
	return runner(ctx, testCtx, scenarios)
}

// runnerFor resolves the phaseRunner for name, or nil if this Runners
// value has no executor wired for it.
func (r Runners) runnerFor(name PhaseName) phaseRunner {
	switch name {
	case PhaseAPIProbes:
		if r.API == nil {
			return nil
		}
		return r.runAPIProbes
	case PhaseUIFlows:
		if r.UI == nil {
			return nil
		}
		return r.runUIFlows
	case PhaseQualityAssessments:
		if r.Quality == nil {
			return nil
		}
		return r.runQualityAssessments
	default:
		return nil
	}
}

func (r Runners) runAPIProbes(ctx context.Context, testCtx contracts.TestContext, scenarios []*contracts.TestScenario) PhaseOutcome {
	var results []contracts.TestResult
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		if sc.Config.API == nil {
			continue
		}
		result := r.API.Execute(ctx, testCtx.BaseURL(), sc.Config.API, apitester.RunOptions{
			RetryCount:     sc.RetryCount,
			TimeoutSeconds: sc.TimeoutSeconds,
		})
		stamp(result, sc)
		results = append(results, *result)
	}
	return scorePhase(results)
}

func (r Runners) runUIFlows(ctx context.Context, testCtx contracts.TestContext, scenarios []*contracts.TestScenario) PhaseOutcome {
	var results []contracts.TestResult
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		if sc.Config.UI == nil {
			continue
		}
		result := r.UI.Execute(ctx, sc.Config.UI, browsertester.RunOptions{
			PerformanceThresholds: sc.PerformanceThresholds,
		})
		stamp(result, sc)
		results = append(results, *result)
	}
	return scorePhase(results)
}

func (r Runners) runQualityAssessments(ctx context.Context, testCtx contracts.TestContext, scenarios []*contracts.TestScenario) PhaseOutcome {
	var results []contracts.TestResult
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		spec := sc.Config.AIQuality
		if spec == nil {
			continue
		}
		start := time.Now()
		assessment, err := r.Quality.Assess(ctx, qualityjudge.AssessmentRequest{
			InputPrompt: spec.InputPrompt,
			AIOutput:    firstOrEmpty(spec.ReferenceOutputs),
			Context:     spec.ContextData,
			Metrics:     spec.QualityMetrics,
			Weights:     sc.QualityThresholds,
		})
		result := &contracts.TestResult{TestType: contracts.TestTypeAIQuality, Duration: time.Since(start), RecordedAt: time.Now()}
		if err != nil {
			result.Passed = false
			result.Score = 0
			result.ErrorType = contracts.ErrorTypeInternal
			result.FailureReasons = []string{err.Error()}
		} else {
			result.QualityResult = assessment
			result.Score = assessment.OverallScore
			result.QualityScores = qualityScoreMap(assessment)
			result.Passed = meetsQualityThresholds(assessment, sc.QualityThresholds)
			if !result.Passed {
				result.FailureReasons = []string{"quality assessment did not meet one or more thresholds"}
			}
		}
		stamp(result, sc)
		results = append(results, *result)
	}
	return scorePhase(results)
}

// stamp fills in the identifying fields apitester.Executor.Execute and
// browsertester.Executor.Execute leave zero: they know only their spec,
// not which scenario or execution they are serving.
func stamp(result *contracts.TestResult, sc *contracts.TestScenario) {
	result.ScenarioID = sc.ID
	result.ExecutionID = uuid.NewString()
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// qualityScoreMap flattens an assessment's per-metric scores into the
// TestResult's quality_scores mapping. Under multi-judge strategies the
// last judge's score for a metric wins; ENSEMBLE has already combined
// them.
func qualityScoreMap(assessment *contracts.QualityAssessmentResult) map[contracts.QualityMetric]float64 {
	out := make(map[contracts.QualityMetric]float64, len(assessment.Scores))
	for _, s := range assessment.Scores {
		out[s.Metric] = s.Score
	}
	return out
}

// meetsQualityThresholds reports whether every metric threshold the
// scenario specifies was met by assessment. A scenario with no
// thresholds configured always passes on quality grounds.
func meetsQualityThresholds(assessment *contracts.QualityAssessmentResult, thresholds map[contracts.QualityMetric]float64) bool {
	if len(thresholds) == 0 {
		return true
	}
	scored := make(map[contracts.QualityMetric]float64, len(assessment.Scores))
	for _, s := range assessment.Scores {
		scored[s.Metric] = s.Score
	}
	for metric, threshold := range thresholds {
		if scored[metric] < threshold {
			return false
		}
	}
	return true
}

// scorePhase reduces a phase's individual TestResults to a single
// Score/Passed pair: Score is the mean of each result's own
// executor-computed score (the executor's rubric is authoritative),
// Passed requires every result to have passed. A phase with no results
// is vacuously passed with a perfect score — it had nothing to fail.
func scorePhase(results []contracts.TestResult) PhaseOutcome {
	if len(results) == 0 {
		return PhaseOutcome{Results: results, Score: 1, Passed: true}
	}
	var sum float64
	allPassed := true
	for _, r := range results {
		sum += r.Score
		if !r.Passed {
			allPassed = false
		}
	}
	return PhaseOutcome{
		Results: results,
		Score:   sum / float64(len(results)),
		Passed:  allPassed,
	}
}
