package orchestrator

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/httptransport"
	"github.com/qualitymesh/aat-core/pkg/scenario"
)

// StartSessionRequest is the POST /sessions body.
type StartSessionRequest struct {
	Context   contracts.TestContext     `json:"context"`
	Scenarios []*contracts.TestScenario `json:"scenarios"`
}

// StartSessionResponse acknowledges an accepted session with a summary
// of the plan it will run.
type StartSessionResponse struct {
	SessionID   string            `json:"session_id"`
	PlanSummary map[PhaseName]int `json:"plan_summary"`
}

// PhaseView is one phase's status in a GET /sessions/{id} response.
type PhaseView struct {
	Name          PhaseName `json:"name"`
	ScenarioCount int       `json:"scenario_count"`
	Completed     bool      `json:"completed"`
	Score         *float64  `json:"score,omitempty"`
	Passed        *bool     `json:"passed,omitempty"`
}

// SessionView is the GET /sessions/{id} response: the composite verdict
// (when finished) and per-phase statuses.
type SessionView struct {
	SessionID   string       `json:"session_id"`
	State       SessionState `json:"state"`
	Phases      []PhaseView  `json:"phases"`
	Verdict     *Verdict     `json:"verdict,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// View assembles a consistent snapshot of a session under the registry
// lock.
func (o *Orchestrator) View(id string) (SessionView, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	session, ok := o.sessions[id]
	if !ok {
		return SessionView{}, false
	}

	view := SessionView{
		SessionID:   session.ID,
		State:       session.State,
		Verdict:     session.Verdict,
		CompletedAt: session.CompletedAt,
	}
	if !session.StartedAt.IsZero() {
		started := session.StartedAt
		view.StartedAt = &started
	}
	for _, phase := range session.Plan.Phases {
		pv := PhaseView{Name: phase.Name, ScenarioCount: len(phase.Scenarios)}
		if phase.Outcome != nil {
			pv.Completed = true
			score, passed := phase.Outcome.Score, phase.Outcome.Passed
			pv.Score = &score
			pv.Passed = &passed
		}
		view.Phases = append(view.Phases, pv)
	}
	return view, true
}

// Server is the orchestrator's HTTP surface: POST /sessions,
// GET /sessions/{id}, POST /sessions/{id}/cancel and GET /health.
type Server struct {
	orchestrator   *Orchestrator
	sessionTimeout time.Duration
	scenarios      *scenario.Store
	health         *health.Aggregator
	log            *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer builds the HTTP surface over orchestrator. sessionTimeout
// bounds every accepted session's run; zero defaults to 30 minutes.
func NewServer(orch *Orchestrator, sessionTimeout time.Duration, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if sessionTimeout <= 0 {
		sessionTimeout = 30 * time.Minute
	}
	return &Server{
		orchestrator:   orch,
		sessionTimeout: sessionTimeout,
		health:         healthAgg,
		log:            log,
		cancels:        make(map[string]context.CancelFunc),
	}
}

// WithScenarioStore persists every accepted session's scenarios to
// store ({id}.json per scenario), and returns the server for chaining.
func (s *Server) WithScenarioStore(store *scenario.Store) *Server {
	s.scenarios = store
	return s
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("orchestrator", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/sessions", s.handleStart)
	r.Get("/sessions/{sessionID}", s.handleGet)
	r.Post("/sessions/{sessionID}/cancel", s.handleCancel)
	return r
}

// handleStart validates the scenario set, registers a session, and runs
// it in the background. The response is 202: the caller polls
// GET /sessions/{id} for the verdict.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if len(req.Scenarios) == 0 {
		httptransport.WriteValidationError(w, "scenarios", "must contain at least one scenario")
		return
	}
	for _, sc := range req.Scenarios {
		if err := sc.Validate(); err != nil {
			httptransport.WriteError(w, err)
			return
		}
	}

	session, err := s.orchestrator.NewSession(req.Context, req.Scenarios)
	if err != nil {
		httptransport.WriteError(w, err)
		return
	}

	if s.scenarios != nil {
		for _, sc := range req.Scenarios {
			if _, getErr := s.scenarios.Get(sc.ID); getErr == nil {
				continue
			}
			if createErr := s.scenarios.Create(sc); createErr != nil {
				s.log.WithError(createErr).Warn("failed to persist scenario")
			}
		}
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.sessionTimeout)
	s.mu.Lock()
	s.cancels[session.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, session.ID)
			s.mu.Unlock()
		}()
		_ = s.orchestrator.Run(runCtx, session)
	}()

	summary := make(map[PhaseName]int, len(session.Plan.Phases))
	for _, phase := range session.Plan.Phases {
		summary[phase.Name] = len(phase.Scenarios)
	}
	httptransport.WriteJSON(w, http.StatusAccepted, StartSessionResponse{
		SessionID:   session.ID,
		PlanSummary: summary,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	view, ok := s.orchestrator.View(id)
	if !ok {
		httptransport.WriteJSON(w, http.StatusNotFound, httptransport.ErrorResponse{
			Error:   "not_found",
			Message: "no session with id " + id,
		})
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, view)
}

// handleCancel requests cooperative cancellation. A session that already
// reached a terminal state is reported as-is; cancelling twice is
// harmless.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, ok := s.orchestrator.Session(id); !ok {
		httptransport.WriteJSON(w, http.StatusNotFound, httptransport.ErrorResponse{
			Error:   "not_found",
			Message: "no session with id " + id,
		})
		return
	}

	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()
	if running {
		cancel()
	}

	view, _ := s.orchestrator.View(id)
	httptransport.WriteJSON(w, http.StatusAccepted, view)
}
