package aggregator

import (
	"math"
	"sort"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/shared/mathstat"
)

const topRankingSize = 5

// Reporter assembles AggregatedResults over a Window.
type Reporter struct {
	window                *Window
	anomalySigma          float64
	minDataPointsForTrend int
}

// NewReporter builds a Reporter reading from window.
func NewReporter(window *Window, anomalySigma float64, minDataPointsForTrend int) *Reporter {
	return &Reporter{window: window, anomalySigma: anomalySigma, minDataPointsForTrend: minDataPointsForTrend}
}

// Generate builds the full AggregatedResults for req.
func (rp *Reporter) Generate(req ReportRequest) AggregatedResults {
	results := rp.window.Snapshot(req.StartTime, req.EndTime)

	report := AggregatedResults{
		WindowStart:      req.StartTime,
		WindowEnd:        req.EndTime,
		Overall:          summarize(results),
		ByTestType:       summarizeByTestType(results),
		ByService:        summarizeByService(results),
		Performance:      performanceSummary(results),
		Trends:           AnalyzeTrends(results, rp.minDataPointsForTrend),
		Anomalies:        DetectAnomalies(results, rp.anomalySigma),
		Insights:         DetectInsights(results),
		TopFailures:      topFailures(results),
		TopPerformers:    topPerformers(results),
		DataCompleteness: dataCompleteness(results, req),
		GeneratedAt:      time.Now(),
	}
	report.Recommendations = recommendationsFor(report)
	return report
}

func summarize(results []contracts.TestResult) TestSummary {
	if len(results) == 0 {
		return TestSummary{}
	}
	var passed int
	var scores, durations []float64
	for _, r := range results {
		if r.Passed {
			passed++
		}
		scores = append(scores, resultScore(r))
		durations = append(durations, r.Duration.Seconds())
	}
	return TestSummary{
		TotalTests:     len(results),
		PassedTests:    passed,
		FailedTests:    len(results) - passed,
		PassRate:       float64(passed) / float64(len(results)),
		AvgScore:       mathstat.Mean(scores),
		AvgDurationSec: mathstat.Mean(durations),
	}
}

func summarizeByTestType(results []contracts.TestResult) map[contracts.TestType]TestSummary {
	byType := make(map[contracts.TestType][]contracts.TestResult)
	for _, r := range results {
		byType[r.TestType] = append(byType[r.TestType], r)
	}
	out := make(map[contracts.TestType]TestSummary, len(byType))
	for t, rs := range byType {
		out[t] = summarize(rs)
	}
	return out
}

func summarizeByService(results []contracts.TestResult) map[string]TestSummary {
	byService := make(map[string][]contracts.TestResult)
	for _, r := range results {
		name := serviceName(r.ExecutionID)
		byService[name] = append(byService[name], r)
	}
	out := make(map[string]TestSummary, len(byService))
	for name, rs := range byService {
		out[name] = summarize(rs)
	}
	return out
}

func performanceSummary(results []contracts.TestResult) PerformanceSummary {
	if len(results) == 0 {
		return PerformanceSummary{}
	}
	durations := make([]float64, len(results))
	for i, r := range results {
		durations[i] = float64(r.Duration.Milliseconds())
	}
	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)
	return PerformanceSummary{
		AvgDurationMs: mathstat.Mean(durations),
		P50DurationMs: mathstat.Percentile(sorted, 50),
		P95DurationMs: mathstat.Percentile(sorted, 95),
		P99DurationMs: mathstat.Percentile(sorted, 99),
	}
}

func topFailures(results []contracts.TestResult) []FailureEntry {
	counts := make(map[string]int)
	for _, r := range results {
		if !r.Passed {
			counts[r.ScenarioID]++
		}
	}
	entries := make([]FailureEntry, 0, len(counts))
	for id, count := range counts {
		entries = append(entries, FailureEntry{ScenarioID: id, FailureCount: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FailureCount != entries[j].FailureCount {
			return entries[i].FailureCount > entries[j].FailureCount
		}
		return entries[i].ScenarioID < entries[j].ScenarioID
	})
	return firstN(entries, topRankingSize)
}

func topPerformers(results []contracts.TestResult) []PerformerEntry {
	byScenario := make(map[string][]contracts.TestResult)
	for _, r := range results {
		byScenario[r.ScenarioID] = append(byScenario[r.ScenarioID], r)
	}

	entries := make([]PerformerEntry, 0, len(byScenario))
	for id, rs := range byScenario {
		var scores, durations []float64
		for _, r := range rs {
			scores = append(scores, resultScore(r))
			durations = append(durations, r.Duration.Seconds())
		}
		avgScore := mathstat.Mean(scores)
		avgDuration := math.Max(mathstat.Mean(durations), 0.1)
		entries = append(entries, PerformerEntry{
			ScenarioID: id,
			AvgScore:   avgScore,
			Efficiency: avgScore / avgDuration,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Efficiency != entries[j].Efficiency {
			return entries[i].Efficiency > entries[j].Efficiency
		}
		return entries[i].ScenarioID < entries[j].ScenarioID
	})
	return firstN(entries, topRankingSize)
}

func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// dataCompleteness estimates how much of the expected test volume over
// the window was actually observed, clipped to [0,1]. A zero baseline
// means completeness isn't being tracked, so it reports as fully
// complete rather than undefined.
func dataCompleteness(results []contracts.TestResult, req ReportRequest) float64 {
	if req.ExpectedTestsPerHour <= 0 {
		return 1.0
	}
	hours := req.EndTime.Sub(req.StartTime).Hours()
	if hours <= 0 {
		return 1.0
	}
	expected := req.ExpectedTestsPerHour * hours
	if expected <= 0 {
		return 1.0
	}
	completeness := float64(len(results)) / expected
	if completeness > 1 {
		return 1.0
	}
	return completeness
}

func recommendationsFor(report AggregatedResults) []string {
	var out []string
	if report.Overall.TotalTests == 0 {
		return out
	}
	if report.Overall.PassRate < 0.9 {
		out = append(out, "pass rate is below 90%; investigate top failures before the next release")
	}
	for _, t := range report.Trends {
		if t.Direction == TrendDeclining && t.Confidence > 0.5 {
			out = append(out, "metric "+t.Metric+" is trending downward with high confidence")
		}
		if t.Direction == TrendVolatile {
			out = append(out, "metric "+t.Metric+" is volatile; consider more samples before trusting its trend")
		}
	}
	for _, insight := range report.Insights {
		if insight.Priority == PriorityHigh {
			out = append(out, insight.Title+": "+insight.Description)
		}
	}
	return out
}
