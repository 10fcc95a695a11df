package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualitymesh/aat-core/pkg/apitester"
	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
	"github.com/qualitymesh/aat-core/pkg/orchestrator"
	"github.com/qualitymesh/aat-core/pkg/qualityjudge"
)

func TestOrchestratorRunAssemblesPassingVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bus := eventbus.New(nil)
	var mu sync.Mutex
	var topics []eventbus.Topic
	for _, topic := range []eventbus.Topic{
		eventbus.TopicSessionStarted, eventbus.TopicPhaseStarted,
		eventbus.TopicPhaseCompleted, eventbus.TopicResultRecorded,
		eventbus.TopicSessionCompleted,
	} {
		topic := topic
		bus.Subscribe(topic, func(eventbus.Event) {
			mu.Lock()
			topics = append(topics, topic)
			mu.Unlock()
		})
	}

	runners := orchestrator.Runners{
		API:     apitester.NewExecutor(0, nil),
		Quality: qualityjudge.NewEngine(&stubJudge{name: "stub", score: 1.0}),
	}
	orch := orchestrator.NewOrchestrator(runners, bus, 0.8, nil)

	testCtx := contracts.TestContext{Metadata: map[string]string{"base_url": server.URL}}
	scenarios := []*contracts.TestScenario{apiScenario("api-1")}

	session, err := orch.NewSession(testCtx, scenarios)
	require.NoError(t, err)

	require.NoError(t, orch.Run(context.Background(), session))

	assert.Equal(t, orchestrator.SessionCompleted, session.State)
	require.NotNil(t, session.Verdict)
	assert.True(t, session.Verdict.OverallPassed)
	assert.Equal(t, 1.0, session.Verdict.OverallScore)
	require.Len(t, session.Executions, 1)
	assert.Equal(t, contracts.ExecutionCompleted, session.Executions[0].State)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, topics)
	assert.Equal(t, eventbus.TopicSessionStarted, topics[0])
	assert.Equal(t, eventbus.TopicSessionCompleted, topics[len(topics)-1])
}

func TestOrchestratorRunFailsVerdictWhenAPhaseFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	runners := orchestrator.Runners{API: apitester.NewExecutor(0, nil)}
	orch := orchestrator.NewOrchestrator(runners, nil, 0.8, nil)

	testCtx := contracts.TestContext{Metadata: map[string]string{"base_url": server.URL}}
	session, err := orch.NewSession(testCtx, []*contracts.TestScenario{apiScenario("api-1")})
	require.NoError(t, err)

	require.NoError(t, orch.Run(context.Background(), session))

	assert.Equal(t, orchestrator.SessionFailed, session.State)
	assert.False(t, session.Verdict.OverallPassed)
	assert.Equal(t, contracts.ExecutionFailed, session.Executions[0].State)
}

func TestOrchestratorRunCancelsNonTerminalExecutions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bus := eventbus.New(nil)
	cancelled := false
	bus.Subscribe(eventbus.TopicSessionCancelled, func(eventbus.Event) { cancelled = true })

	runners := orchestrator.Runners{API: apitester.NewExecutor(0, nil)}
	orch := orchestrator.NewOrchestrator(runners, bus, 0.8, nil)

	// Two scenarios sharing one deadline: the first consumes the whole
	// budget fighting the slow server, so the phase loop's cooperative
	// ctx.Err() check stops before the second scenario ever runs —
	// leaving its TestExecution non-terminal for Run to cancel.
	testCtx := contracts.TestContext{Metadata: map[string]string{"base_url": server.URL}}
	session, err := orch.NewSession(testCtx, []*contracts.TestScenario{apiScenario("api-1"), apiScenario("api-2")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	runErr := orch.Run(ctx, session)

	assert.Error(t, runErr)
	assert.Equal(t, orchestrator.SessionCancelled, session.State)
	assert.True(t, cancelled)

	var sawCancelled bool
	for _, exec := range session.Executions {
		assert.True(t, exec.State.IsTerminal(), "every execution must end in a terminal state")
		if exec.State == contracts.ExecutionCancelled {
			sawCancelled = true
		}
	}
	assert.True(t, sawCancelled, "the scenario never reached before the deadline should end up CANCELLED")
}
