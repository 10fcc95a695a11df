package aggregator_test

import (
	"testing"
	"time"

	"github.com/qualitymesh/aat-core/pkg/aggregator"
	"github.com/qualitymesh/aat-core/pkg/contracts"
)

func TestReporterGenerateSummarizesOverallAndByService(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	now := time.Now()

	w.Ingest(result("svcA_1", "scenario-1", true, now))
	w.Ingest(result("svcA_2", "scenario-1", false, now.Add(time.Minute)))
	w.Ingest(result("svcB_1", "scenario-2", true, now.Add(2*time.Minute)))

	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	})

	if report.Overall.TotalTests != 3 {
		t.Fatalf("expected 3 total tests, got %d", report.Overall.TotalTests)
	}
	if report.Overall.FailedTests != 1 {
		t.Fatalf("expected 1 failed test, got %d", report.Overall.FailedTests)
	}
	if len(report.ByService) != 2 {
		t.Fatalf("expected 2 services, got %d: %+v", len(report.ByService), report.ByService)
	}
	if report.ByService["svcA"].TotalTests != 2 {
		t.Fatalf("expected svcA to have 2 tests, got %+v", report.ByService["svcA"])
	}
}

func TestReporterTopFailuresRanksByCount(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	now := time.Now()

	w.Ingest(result("svcA_1", "flaky", false, now))
	w.Ingest(result("svcA_2", "flaky", false, now.Add(time.Minute)))
	w.Ingest(result("svcA_3", "stable", false, now.Add(2*time.Minute)))

	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)})

	if len(report.TopFailures) == 0 || report.TopFailures[0].ScenarioID != "flaky" {
		t.Fatalf("expected 'flaky' to rank first by failure count, got %+v", report.TopFailures)
	}
}

func TestReporterDataCompletenessDefaultsToFullWhenNoBaseline(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{StartTime: time.Now().Add(-time.Hour), EndTime: time.Now()})

	if report.DataCompleteness != 1.0 {
		t.Fatalf("expected full completeness with no baseline configured, got %v", report.DataCompleteness)
	}
}

func TestReporterDataCompletenessBelowBaseline(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	now := time.Now()
	w.Ingest(result("svcA_1", "s1", true, now))

	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{
		StartTime:            now.Add(-2 * time.Hour),
		EndTime:              now,
		ExpectedTestsPerHour: 10,
	})

	if report.DataCompleteness >= 1.0 {
		t.Fatalf("expected completeness below 1.0 when far under baseline, got %v", report.DataCompleteness)
	}
}

func TestReporterRecommendationsFlagLowPassRate(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		w.Ingest(result("svcA_1", "s1", i == 0, now.Add(time.Duration(i)*time.Minute)))
	}

	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)})

	found := false
	for _, r := range report.Recommendations {
		if r != "" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected at least one recommendation for a low pass rate")
	}
}

func TestReporterUsesQualityResultScoreWhenPresent(t *testing.T) {
	w := aggregator.NewWindow(1000, 7*24*time.Hour, nil)
	now := time.Now()
	r := contracts.TestResult{
		ExecutionID: "svcA_1",
		ScenarioID:  "s1",
		TestType:    contracts.TestTypeAIQuality,
		Passed:      true,
		Duration:    time.Second,
		RecordedAt:  now,
		QualityResult: &contracts.QualityAssessmentResult{
			OverallScore: 0.42,
		},
	}
	w.Ingest(r)

	reporter := aggregator.NewReporter(w, 2.0, 5)
	report := reporter.Generate(aggregator.ReportRequest{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)})

	if report.Overall.AvgScore != 0.42 {
		t.Fatalf("expected avg score to use the quality result's overall score, got %v", report.Overall.AvgScore)
	}
}
