package apitester

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/httptransport"
)

// recentResultsCap bounds the server's in-memory result history; the
// aggregator's pull fallback reads it via GET /results.
const recentResultsCap = 256

// TestRequest is the POST /test body: one APITestSpec plus the optional
// TestContext whose metadata.base_url resolves a relative endpoint.
// RetryCount and TimeoutSeconds carry the scenario-level knobs a bare
// spec run has no TestScenario to supply.
type TestRequest struct {
	Spec           *contracts.APITestSpec `json:"spec"`
	Context        *contracts.TestContext `json:"context,omitempty"`
	RetryCount     int                    `json:"retry_count,omitempty"`
	TimeoutSeconds int                    `json:"timeout_seconds,omitempty"`
}

// LoadTestRequest is the POST /test/load body.
type LoadTestRequest struct {
	Spec            *contracts.APITestSpec `json:"spec"`
	ConcurrentUsers int                    `json:"concurrent_users"`
	DurationSeconds int                    `json:"duration_seconds"`
	Context         *contracts.TestContext `json:"context,omitempty"`
}

// Server is the API tester's HTTP surface: POST /test, POST /test/load,
// GET /results (executor history for the aggregator's pull fallback) and
// GET /health.
type Server struct {
	executor     *Executor
	maxLoadUsers int
	health       *health.Aggregator
	log          *logrus.Logger

	mu     sync.Mutex
	recent []contracts.TestResult
}

// NewServer builds the HTTP surface over executor. maxLoadUsers caps
// POST /test/load's concurrent_users; zero or negative means no cap.
func NewServer(executor *Executor, maxLoadUsers int, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		executor:     executor,
		maxLoadUsers: maxLoadUsers,
		health:       healthAgg,
		log:          log,
	}
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("api-tester", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/test", s.handleTest)
	r.Post("/test/load", s.handleLoadTest)
	r.Get("/results", s.handleResults)
	return r
}

// handleTest runs one functional probe. A failing test is still HTTP
// 200 with passed=false; 422 is reserved for a body that fails contract
// validation.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if req.Spec == nil {
		httptransport.WriteValidationError(w, "spec", "must be present")
		return
	}
	if err := req.Spec.Validate(); err != nil {
		httptransport.WriteError(w, err)
		return
	}

	baseURL := ""
	if req.Context != nil {
		baseURL = req.Context.BaseURL()
	}
	result := s.executor.Execute(r.Context(), baseURL, req.Spec, RunOptions{
		RetryCount:     req.RetryCount,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	s.stamp(result, req.Context)
	s.record(*result)

	httptransport.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleLoadTest(w http.ResponseWriter, r *http.Request) {
	var req LoadTestRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if req.Spec == nil {
		httptransport.WriteValidationError(w, "spec", "must be present")
		return
	}
	if err := req.Spec.Validate(); err != nil {
		httptransport.WriteError(w, err)
		return
	}
	if req.ConcurrentUsers <= 0 {
		httptransport.WriteValidationError(w, "concurrent_users", "must be positive")
		return
	}
	if s.maxLoadUsers > 0 && req.ConcurrentUsers > s.maxLoadUsers {
		httptransport.WriteValidationError(w, "concurrent_users", "exceeds configured load_test_max_users")
		return
	}
	if req.DurationSeconds <= 0 {
		httptransport.WriteValidationError(w, "duration_seconds", "must be positive")
		return
	}

	baseURL := ""
	if req.Context != nil {
		baseURL = req.Context.BaseURL()
	}
	stats := s.executor.RunLoadTest(r.Context(), LoadTestSpec{
		ConcurrentUsers: req.ConcurrentUsers,
		DurationSeconds: req.DurationSeconds,
		Spec:            req.Spec,
		BaseURL:         baseURL,
	})

	httptransport.WriteJSON(w, http.StatusOK, stats)
}

// handleResults serves the executor's recent result history, optionally
// filtered by ?since=RFC3339.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	since, ok := httptransport.ParseSince(r)
	if !ok {
		httptransport.WriteValidationError(w, "since", "must be an RFC3339 timestamp")
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, s.recentSince(since))
}

// stamp fills the identity fields a standalone (non-orchestrated) run
// has no session to supply.
func (s *Server) stamp(result *contracts.TestResult, testCtx *contracts.TestContext) {
	if result.ExecutionID == "" {
		result.ExecutionID = "apitester_" + uuid.NewString()
	}
	if testCtx != nil && result.Metadata == nil && testCtx.SessionID != "" {
		result.Metadata = map[string]string{"session_id": testCtx.SessionID}
	}
}

func (s *Server) record(result contracts.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, result)
	if len(s.recent) > recentResultsCap {
		s.recent = s.recent[len(s.recent)-recentResultsCap:]
	}
}

func (s *Server) recentSince(since time.Time) []contracts.TestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contracts.TestResult, 0, len(s.recent))
	for _, r := range s.recent {
		if since.IsZero() || !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}
