package orchestrator

import (
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// BuildPlan validates scenarios and groups them into the fixed four-phase
// plan by TestType. A scenario whose TestType has no executor wired to
// any phase is rejected with a validation error (KindInput): the caller asked for a kind of
// test this orchestrator build cannot run.
func BuildPlan(scenarios []*contracts.TestScenario) (*Plan, error) {
	grouped := make(map[PhaseName][]*contracts.TestScenario, len(phaseOrder))

	for _, sc := range scenarios {
		phase, ok := testTypeForPhase[sc.TestType]
		if !ok {
			return nil, sharederrors.ValidationError("test_type", "no executor is wired for "+string(sc.TestType))
		}
		grouped[phase] = append(grouped[phase], sc)
	}

	plan := &Plan{}
	for _, name := range phaseOrder {
		if name == PhaseAggregation {
			// The aggregation phase has no scenarios of its own: it
			// summarizes the results the other three phases produced.
			plan.Phases = append(plan.Phases, &Phase{Name: name})
			continue
		}
		plan.Phases = append(plan.Phases, &Phase{Name: name, Scenarios: grouped[name]})
	}
	return plan, nil
}

// Phase looks up one named phase in the plan, or nil if absent.
func (p *Plan) Phase(name PhaseName) *Phase {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph
		}
	}
	return nil
}

// ActivePhases returns every phase (other than aggregation) carrying at
// least one scenario — these are the phases a Session actually needs to
// run.
func (p *Plan) ActivePhases() []*Phase {
	var active []*Phase
	for _, ph := range p.Phases {
		if ph.Name != PhaseAggregation && len(ph.Scenarios) > 0 {
			active = append(active, ph)
		}
	}
	return active
}
