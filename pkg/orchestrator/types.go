// Package orchestrator implements the session lifecycle (C8): a phased
// test plan (api_probes -> ui_flows -> quality_assessments ->
// aggregation), concurrent execution of independent phases, a composite
// pass/fail verdict, and cooperative cancellation.
package orchestrator

import (
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// PhaseName identifies one stage of a Session's test plan.
type PhaseName string

const (
	PhaseAPIProbes          PhaseName = "api_probes"
	PhaseUIFlows            PhaseName = "ui_flows"
	PhaseQualityAssessments PhaseName = "quality_assessments"
	PhaseAggregation        PhaseName = "aggregation"
)

// phaseOrder is the fixed sequence a Plan's phases run in. Phases 1-3
// (indices 0-2) are independent of one another and run concurrently;
// PhaseAggregation (index 3) awaits all three.
var phaseOrder = []PhaseName{PhaseAPIProbes, PhaseUIFlows, PhaseQualityAssessments, PhaseAggregation}

// testTypeForPhase maps a TestScenario's TestType to the phase that
// executes it. TestTypes with no executor wired (INTEGRATION,
// PERFORMANCE, SECURITY, ACCESSIBILITY) have no entry and are rejected
// by Plan validation.
var testTypeForPhase = map[contracts.TestType]PhaseName{
	contracts.TestTypeAPI:       PhaseAPIProbes,
	contracts.TestTypeUI:        PhaseUIFlows,
	contracts.TestTypeAIQuality: PhaseQualityAssessments,
}

// Phase is one group of scenarios sharing a PhaseName, plus the outcome
// once it has run.
type Phase struct {
	Name      PhaseName
	Scenarios []*contracts.TestScenario
	Outcome   *PhaseOutcome
}

// PhaseOutcome is the result of running one Phase's scenarios.
type PhaseOutcome struct {
	Results []contracts.TestResult
	Score   float64
	Passed  bool
	Error   error
}

// Plan is the ordered set of Phases a Session executes.
type Plan struct {
	Phases []*Phase
}

// SessionState mirrors contracts.ExecutionState's vocabulary for a whole
// session rather than a single execution.
type SessionState string

const (
	SessionPending   SessionState = "PENDING"
	SessionRunning   SessionState = "RUNNING"
	SessionCompleted SessionState = "COMPLETED"
	SessionFailed    SessionState = "FAILED"
	SessionCancelled SessionState = "CANCELLED"
)

// Verdict is the composite pass/fail outcome assembled once every phase
// a Session's plan includes has finished.
type Verdict struct {
	OverallScore  float64                `json:"overall_score"`
	OverallPassed bool                   `json:"overall_passed"`
	PhaseScores   map[PhaseName]float64  `json:"phase_scores"`
	PhasePassed   map[PhaseName]bool     `json:"phase_passed"`
}

// Session scopes one test request: a unique ID, the TestContext threaded
// through every execution, the plan being run, and its terminal state.
type Session struct {
	ID      string
	Context contracts.TestContext
	Plan    *Plan

	State      SessionState
	Executions []*contracts.TestExecution
	Verdict    *Verdict

	StartedAt   time.Time
	CompletedAt *time.Time
}
