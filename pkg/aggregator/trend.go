package aggregator

import (
	"math"
	"sort"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/shared/mathstat"
)

const (
	volatileCoefficientOfVariation = 0.5
	stableCorrelationFloor         = 0.3
)

// lowerIsBetter names the series whose direction classification inverts
// relative to a positive slope.
var lowerIsBetter = map[string]bool{
	"duration_ms": true,
}

// AnalyzeTrends groups results by calendar day and fits a trend per
// metric series (overall score, success rate, duration, and each
// quality dimension present in the window), for every series with at
// least minDataPoints daily samples.
func AnalyzeTrends(results []contracts.TestResult, minDataPoints int) []Trend {
	series := buildSeries(results)

	var trends []Trend
	for metric, byDay := range series {
		daily := dailyMeans(byDay)
		if len(daily) < minDataPoints {
			continue
		}
		trends = append(trends, trendFor(metric, daily))
	}

	sort.Slice(trends, func(i, j int) bool { return trends[i].Metric < trends[j].Metric })
	return trends
}

func trendFor(metric string, daily []float64) Trend {
	slope, _ := mathstat.LinearRegression(daily)
	r := mathstat.PearsonCorrelation(daily)
	cv := mathstat.CoefficientOfVariation(daily)

	direction := TrendStable
	switch {
	case cv > volatileCoefficientOfVariation:
		direction = TrendVolatile
	case math.Abs(r) < stableCorrelationFloor:
		direction = TrendStable
	case lowerIsBetter[metric]:
		if slope < 0 {
			direction = TrendImproving
		} else {
			direction = TrendDeclining
		}
	default:
		if slope > 0 {
			direction = TrendImproving
		} else {
			direction = TrendDeclining
		}
	}

	confidence := math.Abs(r)
	if confidence > 1 {
		confidence = 1
	}

	return Trend{
		Metric:      metric,
		Direction:   direction,
		Slope:       slope,
		Correlation: r,
		Confidence:  confidence,
		SampleCount: len(daily),
	}
}

// buildSeries maps a metric name to its samples grouped by calendar day
// (UTC), for every series the window can supply: "score", "success_rate",
// "duration_ms", and one series per quality dimension observed.
func buildSeries(results []contracts.TestResult) map[string]map[string][]float64 {
	series := make(map[string]map[string][]float64)
	addSample := func(metric, day string, value float64) {
		byDay, ok := series[metric]
		if !ok {
			byDay = make(map[string][]float64)
			series[metric] = byDay
		}
		byDay[day] = append(byDay[day], value)
	}

	for _, r := range results {
		day := r.RecordedAt.UTC().Format("2006-01-02")
		addSample("score", day, resultScore(r))
		addSample("duration_ms", day, float64(r.Duration.Milliseconds()))
		if r.Passed {
			addSample("success_rate", day, 1)
		} else {
			addSample("success_rate", day, 0)
		}
		if r.QualityResult != nil {
			for _, s := range r.QualityResult.Scores {
				addSample(string(s.Metric), day, s.Score)
			}
		} else {
			for metric, score := range r.QualityScores {
				addSample(string(metric), day, score)
			}
		}
	}
	return series
}

// dailyMeans collapses a day->samples map into a slice of daily means,
// ordered chronologically.
func dailyMeans(byDay map[string][]float64) []float64 {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	means := make([]float64, len(days))
	for i, day := range days {
		means[i] = mathstat.Mean(byDay[day])
	}
	return means
}
