package aggregator

import (
	"fmt"
	"math"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/shared/mathstat"
)

const (
	regressionDeltaThreshold    = 0.1
	regressionHighPriorityDelta = 0.2
	patternMinSamples           = 5
	patternLowSigma             = 0.1
	patternHighMean             = 0.7
	patternVariableSigma        = 0.2
	comparativeDeltaThreshold   = 0.05
	recentWindowSize            = 10
)

// DetectInsights runs all three quality-insight detectors over results,
// which must be sorted ascending by RecordedAt.
func DetectInsights(results []contracts.TestResult) []QualityInsight {
	var insights []QualityInsight
	if insight := detectRegressionOrImprovement(results); insight != nil {
		insights = append(insights, *insight)
	}
	insights = append(insights, detectPatterns(results)...)
	if insight := detectComparative(results); insight != nil {
		insights = append(insights, *insight)
	}
	return insights
}

func detectRegressionOrImprovement(results []contracts.TestResult) *QualityInsight {
	if len(results) <= recentWindowSize {
		return nil
	}

	recent := results[len(results)-recentWindowSize:]
	preceding := results[:len(results)-recentWindowSize]

	recentMean := mathstat.Mean(scoresOf(recent))
	precedingMean := mathstat.Mean(scoresOf(preceding))
	delta := recentMean - precedingMean

	if math.Abs(delta) <= regressionDeltaThreshold {
		return nil
	}

	insightType := InsightImprovement
	title := "Recent quality improvement"
	if delta < 0 {
		insightType = InsightRegression
		title = "Recent quality regression"
	}

	return &QualityInsight{
		Type:            insightType,
		Confidence:      math.Min(math.Abs(delta)/regressionHighPriorityDelta, 1.0),
		Title:           title,
		Description:     fmt.Sprintf("mean score over the last %d results moved by %.3f relative to the preceding window", recentWindowSize, delta),
		AffectedMetrics: []string{"score"},
		Evidence:        map[string]float64{"recent_mean": recentMean, "preceding_mean": precedingMean, "delta": delta},
		Priority:        priorityFor(delta),
	}
}

func detectPatterns(results []contracts.TestResult) []QualityInsight {
	byMetric := make(map[contracts.QualityMetric][]float64)
	for _, r := range results {
		if r.QualityResult == nil {
			continue
		}
		for _, s := range r.QualityResult.Scores {
			byMetric[s.Metric] = append(byMetric[s.Metric], s.Score)
		}
	}

	var insights []QualityInsight
	for metric, scores := range byMetric {
		if len(scores) < patternMinSamples {
			continue
		}
		mean := mathstat.Mean(scores)
		sigma := mathstat.StandardDeviation(scores)

		switch {
		case sigma < patternLowSigma && mean > patternHighMean:
			insights = append(insights, QualityInsight{
				Type:            InsightPattern,
				Confidence:      1 - sigma,
				Title:           fmt.Sprintf("%s is consistently strong", metric),
				Description:     fmt.Sprintf("%s scored a mean of %.3f with low variance (σ=%.3f) over %d samples", metric, mean, sigma, len(scores)),
				AffectedMetrics: []string{string(metric)},
				Evidence:        map[string]float64{"mean": mean, "std_dev": sigma},
				Priority:        PriorityLow,
			})
		case sigma > patternVariableSigma:
			insights = append(insights, QualityInsight{
				Type:            InsightPattern,
				Confidence:      math.Min(sigma, 1.0),
				Title:           fmt.Sprintf("%s is variable", metric),
				Description:     fmt.Sprintf("%s has high variance (σ=%.3f) over %d samples", metric, sigma, len(scores)),
				AffectedMetrics: []string{string(metric)},
				Evidence:        map[string]float64{"mean": mean, "std_dev": sigma},
				Priority:        PriorityMedium,
			})
		}
	}
	return insights
}

func detectComparative(results []contracts.TestResult) *QualityInsight {
	half := len(results) / 2
	if half == 0 {
		return nil
	}
	historical := results[:half]
	current := results[len(results)-half:]

	currentMean := mathstat.Mean(scoresOf(current))
	historicalMean := mathstat.Mean(scoresOf(historical))
	delta := currentMean - historicalMean

	if math.Abs(delta) <= comparativeDeltaThreshold {
		return nil
	}

	return &QualityInsight{
		Type:            InsightComparative,
		Confidence:      math.Min(math.Abs(delta)/regressionHighPriorityDelta, 1.0),
		Title:           "Comparative shift vs historical window",
		Description:     fmt.Sprintf("current window mean %.3f vs historical window mean %.3f (delta %.3f)", currentMean, historicalMean, delta),
		AffectedMetrics: []string{"score"},
		Evidence:        map[string]float64{"current_mean": currentMean, "historical_mean": historicalMean, "delta": delta},
		Priority:        priorityFor(delta),
	}
}

func priorityFor(delta float64) InsightPriority {
	if math.Abs(delta) > regressionHighPriorityDelta {
		return PriorityHigh
	}
	return PriorityMedium
}

func scoresOf(results []contracts.TestResult) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = resultScore(r)
	}
	return out
}
