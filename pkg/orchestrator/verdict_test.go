package orchestrator_test

import (
	"testing"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/orchestrator"
)

// oneScenario returns a single placeholder scenario, just enough for
// Plan.ActivePhases to consider the phase carrying it active.
func oneScenario() []*contracts.TestScenario {
	return []*contracts.TestScenario{{ID: "placeholder"}}
}

func TestComputeVerdictAveragesPhaseScores(t *testing.T) {
	plan := &orchestrator.Plan{Phases: []*orchestrator.Phase{
		{Name: orchestrator.PhaseAPIProbes, Scenarios: oneScenario(), Outcome: &orchestrator.PhaseOutcome{Score: 1.0, Passed: true}},
		{Name: orchestrator.PhaseUIFlows, Scenarios: oneScenario(), Outcome: &orchestrator.PhaseOutcome{Score: 0.5, Passed: true}},
		{Name: orchestrator.PhaseAggregation},
	}}

	v := orchestrator.ComputeVerdict(plan, 0.6)
	if v.OverallScore != 0.75 {
		t.Fatalf("expected overall_score 0.75, got %v", v.OverallScore)
	}
	if !v.OverallPassed {
		t.Fatalf("expected overall_passed true: both phases passed and score clears threshold")
	}
}

func TestComputeVerdictFailsBelowThresholdEvenIfAllPhasesPassed(t *testing.T) {
	plan := &orchestrator.Plan{Phases: []*orchestrator.Phase{
		{Name: orchestrator.PhaseAPIProbes, Scenarios: oneScenario(), Outcome: &orchestrator.PhaseOutcome{Score: 0.5, Passed: true}},
	}}
	v := orchestrator.ComputeVerdict(plan, 0.8)
	if v.OverallPassed {
		t.Fatalf("expected overall_passed false: score 0.5 is below the 0.8 threshold")
	}
}

func TestComputeVerdictFailsIfAnyPhaseFailedRegardlessOfScore(t *testing.T) {
	plan := &orchestrator.Plan{Phases: []*orchestrator.Phase{
		{Name: orchestrator.PhaseAPIProbes, Scenarios: oneScenario(), Outcome: &orchestrator.PhaseOutcome{Score: 1.0, Passed: true}},
		{Name: orchestrator.PhaseUIFlows, Scenarios: oneScenario(), Outcome: &orchestrator.PhaseOutcome{Score: 1.0, Passed: false}},
	}}
	v := orchestrator.ComputeVerdict(plan, 0.5)
	if v.OverallPassed {
		t.Fatalf("expected overall_passed false: ui_flows failed even though its score was perfect")
	}
}

func TestComputeVerdictTreatsMissingOutcomeAsFailure(t *testing.T) {
	plan := &orchestrator.Plan{Phases: []*orchestrator.Phase{
		{Name: orchestrator.PhaseAPIProbes, Scenarios: oneScenario()},
	}}
	v := orchestrator.ComputeVerdict(plan, 0.1)
	if v.OverallPassed || v.PhaseScores[orchestrator.PhaseAPIProbes] != 0 {
		t.Fatalf("expected a phase with no outcome (never ran) to count as a failed zero, got %+v", v)
	}
}

func TestComputeVerdictVacuousPassWithNoActivePhases(t *testing.T) {
	plan := &orchestrator.Plan{Phases: []*orchestrator.Phase{{Name: orchestrator.PhaseAggregation}}}
	v := orchestrator.ComputeVerdict(plan, 0.8)
	if !v.OverallPassed || v.OverallScore != 1 {
		t.Fatalf("expected a vacuous pass when nothing was scheduled, got %+v", v)
	}
}
