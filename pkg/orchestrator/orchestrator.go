package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
	"github.com/qualitymesh/aat-core/pkg/metrics"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Orchestrator drives Sessions end to end: it builds a Plan from the
// caller's scenarios, runs the independent phases concurrently, waits
// for all three before aggregating, and assembles the composite Verdict.
type Orchestrator struct {
	runners          Runners
	bus              *eventbus.Bus
	qualityThreshold float64
	log              *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*Session
	running  int
}

// NewOrchestrator builds an Orchestrator over runners, publishing
// lifecycle events on bus. qualityThreshold is the minimum overall_score
// a Session needs to pass regardless of per-phase outcomes.
func NewOrchestrator(runners Runners, bus *eventbus.Bus, qualityThreshold float64, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		runners:          runners,
		bus:              bus,
		qualityThreshold: qualityThreshold,
		log:              log.WithFields(logging.Fields{}.Component("orchestrator").ToLogrus()),
		sessions:         make(map[string]*Session),
	}
}

// NewSession validates scenarios, builds their Plan, and registers a
// fresh PENDING Session scoped to testCtx.SessionID (minted if empty).
func (o *Orchestrator) NewSession(testCtx contracts.TestContext, scenarios []*contracts.TestScenario) (*Session, error) {
	plan, err := BuildPlan(scenarios)
	if err != nil {
		return nil, err
	}
	if testCtx.SessionID == "" {
		testCtx.SessionID = uuid.NewString()
	}
	session := &Session{
		ID:      testCtx.SessionID,
		Context: testCtx,
		Plan:    plan,
		State:   SessionPending,
	}
	o.mu.Lock()
	o.sessions[session.ID] = session
	o.mu.Unlock()
	return session, nil
}

// Session looks up a registered session by ID.
func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Run executes session's plan: api_probes, ui_flows and
// quality_assessments run concurrently, aggregation waits for all three,
// then the composite Verdict is assembled. If ctx is cancelled before
// the plan finishes, Run transitions every non-terminal TestExecution to
// CANCELLED, publishes session.cancelled, and returns ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, session *Session) error {
	o.mutate(func() {
		session.State = SessionRunning
		session.StartedAt = time.Now()
		o.running++
		metrics.SetActiveSessions(float64(o.running))
	})
	defer o.mutate(func() {
		o.running--
		metrics.SetActiveSessions(float64(o.running))
	})
	o.publish(eventbus.TopicSessionStarted, session)

	var wg sync.WaitGroup
	for _, phase := range session.Plan.ActivePhases() {
		phase := phase
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runPhase(ctx, session, phase)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return o.cancel(session, err)
	}

	aggPhase := session.Plan.Phase(PhaseAggregation)
	if aggPhase != nil {
		o.runAggregation(session, aggPhase)
	}

	o.mutate(func() {
		session.Verdict = ptrVerdict(ComputeVerdict(session.Plan, o.qualityThreshold))
		if session.Verdict.OverallPassed {
			session.State = SessionCompleted
		} else {
			session.State = SessionFailed
		}
		now := time.Now()
		session.CompletedAt = &now
	})
	o.log.WithFields(logging.Fields{}.Custom("session_id", session.ID).Custom("state", session.State).
		Custom("overall_score", session.Verdict.OverallScore).ToLogrus()).Info("session finished")
	o.publish(eventbus.TopicSessionCompleted, session)
	return nil
}

// runPhase executes one active phase's scenarios, tracking a
// TestExecution per scenario and publishing result.recorded for every
// TestResult produced so the aggregator and alert engine observe it.
func (o *Orchestrator) runPhase(ctx context.Context, session *Session, phase *Phase) {
	o.publish(eventbus.TopicPhaseStarted, phase)

	executions := make(map[string]*contracts.TestExecution, len(phase.Scenarios))
	for _, sc := range phase.Scenarios {
		exec := &contracts.TestExecution{
			ID:         uuid.NewString(),
			ScenarioID: sc.ID,
			SessionID:  session.ID,
			State:      contracts.ExecutionPending,
			MaxRetries: sc.RetryCount,
		}
		_ = exec.Transition(contracts.ExecutionRunning)
		executions[sc.ID] = exec
		o.addExecution(session, exec)
	}

	outcome := o.runners.Execute(ctx, phase.Name, session.Context, phase.Scenarios)
	o.mutate(func() { phase.Outcome = &outcome })

	if outcome.Error != nil {
		o.log.WithFields(logging.Fields{}.Custom("phase", phase.Name).Custom("error", outcome.Error).ToLogrus()).
			Warn("phase failed to run")
		o.mutate(func() {
			for _, exec := range executions {
				_ = exec.Transition(contracts.ExecutionFailed)
			}
		})
		o.publish(eventbus.TopicPhaseCompleted, phase)
		return
	}

	for _, result := range outcome.Results {
		metrics.RecordTestExecution(string(result.TestType), result.Passed, result.Duration)
		if exec, ok := executions[result.ScenarioID]; ok {
			o.mutate(func() {
				if result.Passed {
					_ = exec.Transition(contracts.ExecutionCompleted)
				} else {
					_ = exec.Transition(contracts.ExecutionFailed)
				}
			})
		}
		o.publish(eventbus.TopicResultRecorded, &result)
	}

	o.publish(eventbus.TopicPhaseCompleted, phase)
}

// runAggregation folds the three preceding phases' results into the
// aggregation phase's own outcome. It never fails on its own account:
// an empty set of prior results aggregates to a vacuous pass.
func (o *Orchestrator) runAggregation(session *Session, aggPhase *Phase) {
	o.publish(eventbus.TopicPhaseStarted, aggPhase)

	var combined []contracts.TestResult
	for _, phase := range session.Plan.Phases {
		if phase.Name == PhaseAggregation || phase.Outcome == nil {
			continue
		}
		combined = append(combined, phase.Outcome.Results...)
	}
	outcome := scorePhase(combined)
	o.mutate(func() { aggPhase.Outcome = &outcome })

	o.publish(eventbus.TopicPhaseCompleted, aggPhase)
}

// cancel marks session CANCELLED, transitions every non-terminal
// TestExecution to CANCELLED, and publishes session.cancelled.
func (o *Orchestrator) cancel(session *Session, cause error) error {
	o.mutate(func() {
		for _, exec := range session.Executions {
			if !exec.State.IsTerminal() {
				_ = exec.Transition(contracts.ExecutionCancelled)
			}
		}
		session.State = SessionCancelled
		now := time.Now()
		session.CompletedAt = &now
	})
	o.publish(eventbus.TopicSessionCancelled, session)
	return cause
}

// mutate serialises writes to session/phase state against the registry
// lock, so the HTTP surface's concurrent reads see consistent snapshots.
func (o *Orchestrator) mutate(fn func()) {
	o.mu.Lock()
	fn()
	o.mu.Unlock()
}

func (o *Orchestrator) addExecution(session *Session, exec *contracts.TestExecution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	session.Executions = append(session.Executions, exec)
}

func (o *Orchestrator) publish(topic eventbus.Topic, payload interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(eventbus.Event{Topic: topic, Payload: payload})
}

func ptrVerdict(v Verdict) *Verdict { return &v }
