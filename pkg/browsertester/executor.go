package browsertester

import (
	"context"
	"sync"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// visualLumaThreshold is the per-pixel luminance delta (0..255) below
// which two pixels count as equal in the visual diff.
const visualLumaThreshold = 16

// RunOptions carries the scenario-level knobs that live outside the
// UITestSpec itself.
type RunOptions struct {
	// PerformanceThresholds maps a captured metric name (e.g.
	// load_time_ms) to its maximum acceptable value; used by the overall
	// UI score's load-time component.
	PerformanceThresholds map[string]float64
}

// Executor runs UITestSpec scenarios by acquiring a Page from a
// ContextPool, replaying its Actions, then evaluating its Assertions.
// It owns the visual-regression baselines: the first screenshot captured
// for a page URL becomes that URL's baseline for the service lifetime.
type Executor struct {
	pool *ContextPool

	mu        sync.Mutex
	baselines map[string][]byte
}

// NewExecutor builds an Executor backed by pool.
func NewExecutor(pool *ContextPool) *Executor {
	return &Executor{
		pool:      pool,
		baselines: make(map[string][]byte),
	}
}

// Execute runs spec end to end: acquire -> navigate -> actions ->
// assertions -> visual/a11y/perf/responsive capture -> release. Score is
// the arithmetic mean of the sub-scores that were actually computed
// (action success rate, assertion success rate, visual match, responsive
// score, accessibility score, load-time check).
func (e *Executor) Execute(ctx context.Context, spec *contracts.UITestSpec, opts RunOptions) *contracts.TestResult {
	result := &contracts.TestResult{
		TestType:   contracts.TestTypeUI,
		RecordedAt: time.Now(),
	}
	start := time.Now()

	page, release, err := e.pool.Acquire(ctx, spec.Browser, spec.ViewportSize)
	if err != nil {
		result.Passed = false
		result.Score = 0
		result.ErrorType = contracts.ErrorTypeCapacity
		if !sharederrors.IsRetryable(err) {
			result.ErrorType = contracts.ErrorTypeInternal
		}
		result.FailureReasons = []string{err.Error()}
		return result
	}
	defer release()

	if err := page.Navigate(ctx, spec.PageURL); err != nil {
		result.Passed = false
		result.Score = 0
		result.ErrorType = contracts.ErrorTypeNetwork
		result.FailureReasons = []string{err.Error()}
		result.Duration = time.Since(start)
		return result
	}

	detail := &contracts.UIResultDetail{}
	var failures []string
	var scores []float64

	for _, action := range spec.Actions {
		if err := page.Perform(ctx, action); err != nil {
			failures = append(failures, "action "+string(action.Type)+" on "+action.Selector+" failed: "+err.Error())
			continue
		}
		detail.ActionsExecuted++
	}
	if len(spec.Actions) > 0 {
		scores = append(scores, float64(detail.ActionsExecuted)/float64(len(spec.Actions)))
	}

	for _, assertion := range spec.Assertions {
		ok, msg, err := page.Check(ctx, assertion)
		if err != nil {
			failures = append(failures, "assertion "+string(assertion.Type)+" errored: "+err.Error())
			detail.AssertionsFailed++
			continue
		}
		if ok {
			detail.AssertionsPassed++
		} else {
			detail.AssertionsFailed++
			failures = append(failures, "assertion "+string(assertion.Type)+" failed: "+msg)
		}
	}
	if len(spec.Assertions) > 0 {
		scores = append(scores, float64(detail.AssertionsPassed)/float64(len(spec.Assertions)))
	}

	if spec.ScreenshotComparison {
		e.compareVisual(ctx, page, spec, detail)
		if detail.VisualMatch {
			scores = append(scores, 1.0)
		} else {
			scores = append(scores, 0.5)
		}
	}

	if auditor, ok := page.(ResponsiveAuditor); ok {
		detail.ResponsiveResults, detail.ResponsiveScore = runResponsiveSuite(ctx, auditor)
		if len(detail.ResponsiveResults) > 0 {
			scores = append(scores, detail.ResponsiveScore)
		}
	}

	if len(spec.AccessibilityStandards) > 0 {
		issues, err := page.AccessibilityAudit(ctx, spec.AccessibilityStandards)
		if err == nil {
			detail.AccessibilityIssues = issues
		}
		scores = append(scores, accessibilityScore(len(detail.AccessibilityIssues), err))
	}

	if len(spec.PerformanceMetrics) > 0 {
		metrics, err := page.PerformanceMetrics(ctx, spec.PerformanceMetrics)
		if err == nil {
			detail.PerformanceMetrics = metrics
		}
		if loadScore, ok := loadTimeScore(detail.PerformanceMetrics, opts.PerformanceThresholds); ok {
			scores = append(scores, loadScore)
		}
	}

	result.UIResult = detail
	result.PerformanceMetrics = detail.PerformanceMetrics
	result.Duration = time.Since(start)
	result.FailureReasons = failures
	result.Passed = len(failures) == 0 && detail.AssertionsFailed == 0
	result.Score = meanOrPassFail(scores, result.Passed)
	return result
}

// compareVisual implements the visual-regression contract: the first
// capture for a page URL becomes its baseline (a vacuous match); later
// captures are diffed per-pixel and matched against visual_threshold.
func (e *Executor) compareVisual(ctx context.Context, page Page, spec *contracts.UITestSpec, detail *contracts.UIResultDetail) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		detail.VisualMatch = false
		return
	}

	e.mu.Lock()
	baseline, seen := e.baselines[spec.PageURL]
	if !seen {
		e.baselines[spec.PageURL] = shot
	}
	e.mu.Unlock()

	if !seen {
		detail.VisualBaseline = true
		detail.VisualMatch = true
		return
	}

	diff, err := VisualDiffRatio(baseline, shot, visualLumaThreshold)
	if err != nil {
		detail.VisualMatch = false
		return
	}
	detail.VisualDiffRatio = diff
	detail.VisualMatch = diff <= spec.VisualThreshold
}

// accessibilityScore degrades linearly with the number of violations
// found; a missing/errored audit engine scores 1.0 rather than failing
// the run.
func accessibilityScore(violations int, auditErr error) float64 {
	if auditErr != nil {
		return 1.0
	}
	score := 1.0 - 0.1*float64(violations)
	if score < 0 {
		return 0
	}
	return score
}

// loadTimeScore yields the load-time component: 1.0 when load_time_ms is
// within its threshold, 0.5 otherwise. Absent metric or threshold means
// the component is not computed.
func loadTimeScore(metrics, thresholds map[string]float64) (float64, bool) {
	loadTime, ok := metrics["load_time_ms"]
	if !ok {
		return 0, false
	}
	threshold, ok := thresholds["load_time_ms"]
	if !ok || threshold <= 0 {
		return 0, false
	}
	if loadTime <= threshold {
		return 1.0, true
	}
	return 0.5, true
}

// meanOrPassFail averages the computed sub-scores; a spec so bare that
// no component was computed falls back to a boolean pass/fail score.
func meanOrPassFail(scores []float64, passed bool) float64 {
	if len(scores) == 0 {
		if passed {
			return 1.0
		}
		return 0.0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
