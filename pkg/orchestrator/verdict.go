package orchestrator

// ComputeVerdict folds a plan's finished ActivePhases into a single
// composite Verdict: overall_score is the mean of the phase scores, and
// overall_passed requires every phase to have passed AND the overall
// score to clear qualityThreshold. A plan with no active phases (nothing
// was scheduled) has a vacuous perfect verdict.
func ComputeVerdict(plan *Plan, qualityThreshold float64) Verdict {
	active := plan.ActivePhases()
	v := Verdict{
		PhaseScores: make(map[PhaseName]float64, len(active)),
		PhasePassed: make(map[PhaseName]bool, len(active)),
	}
	if len(active) == 0 {
		v.OverallScore = 1
		v.OverallPassed = true
		return v
	}

	var sum float64
	allPassed := true
	for _, ph := range active {
		outcome := ph.Outcome
		if outcome == nil {
			// A phase with no outcome never ran (cancelled before its
			// turn); treat it as a hard failure rather than silently
			// excluding it from the average.
			outcome = &PhaseOutcome{Score: 0, Passed: false}
		}
		v.PhaseScores[ph.Name] = outcome.Score
		v.PhasePassed[ph.Name] = outcome.Passed
		sum += outcome.Score
		if !outcome.Passed {
			allPassed = false
		}
	}

	v.OverallScore = sum / float64(len(active))
	v.OverallPassed = allPassed && v.OverallScore >= qualityThreshold
	return v
}
