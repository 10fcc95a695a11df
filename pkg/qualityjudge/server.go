package qualityjudge

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
	"github.com/qualitymesh/aat-core/pkg/metrics"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

const recentResultsCap = 256

// AssessRequestBody is the POST /assess body.
type AssessRequestBody struct {
	InputPrompt string                              `json:"input_prompt"`
	AIOutput    string                              `json:"ai_output"`
	Context     string                              `json:"context,omitempty"`
	Metrics     []contracts.QualityMetric           `json:"quality_metrics"`
	Strategy    contracts.JudgeStrategy             `json:"strategy,omitempty"`
	Weights     map[contracts.QualityMetric]float64 `json:"weights,omitempty"`
}

// CompareRequestBody is the POST /compare body: every output is scored
// independently against the same metric set.
type CompareRequestBody struct {
	InputPrompt string                    `json:"input_prompt"`
	Outputs     []string                  `json:"outputs"`
	Context     string                    `json:"context,omitempty"`
	Metrics     []contracts.QualityMetric `json:"quality_metrics"`
}

// ComparisonEntry is one output's composite score in a POST /compare
// response, in the same order the outputs were submitted.
type ComparisonEntry struct {
	Index        int     `json:"index"`
	OverallScore float64 `json:"overall_score"`
}

// Server is the quality judge's HTTP surface: POST /assess,
// POST /compare, GET /results and GET /health.
type Server struct {
	engine        *Engine
	passThreshold float64
	health        *health.Aggregator
	log           *logrus.Logger

	mu     sync.Mutex
	recent []contracts.TestResult
}

// NewServer builds the HTTP surface over engine. passThreshold is the
// overall score at or above which a standalone assessment's synthesized
// TestResult reports passed=true; zero defaults to 0.8.
func NewServer(engine *Engine, passThreshold float64, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if passThreshold <= 0 {
		passThreshold = 0.8
	}
	return &Server{
		engine:        engine,
		passThreshold: passThreshold,
		health:        healthAgg,
		log:           log,
	}
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("quality-judge", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/assess", s.handleAssess)
	r.Post("/compare", s.handleCompare)
	r.Get("/results", s.handleResults)
	return r
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequestBody
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if reason, ok := validateAssessBody(req.InputPrompt, req.Metrics); !ok {
		httptransport.WriteValidationError(w, "assess", reason)
		return
	}

	timer := metrics.NewTimer()
	result, err := s.engine.Assess(r.Context(), AssessmentRequest{
		InputPrompt: req.InputPrompt,
		AIOutput:    req.AIOutput,
		Context:     req.Context,
		Metrics:     req.Metrics,
		Strategy:    strategyOrDefault(req.Strategy),
		Weights:     req.Weights,
	})
	if err != nil {
		// ErrNoJudgesAvailable is the one hard configuration error the
		// engine raises; it maps to 503, not a degraded assessment.
		httptransport.WriteError(w, sharederrors.ConfigurationError("judges", err.Error()))
		return
	}
	elapsed := timer.Elapsed()
	for _, score := range result.Scores {
		metrics.RecordQualityAssessment(string(score.Metric), backendLabel(result.ModelsUsed), elapsed)
	}

	s.record(*result)
	httptransport.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequestBody
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if reason, ok := validateAssessBody(req.InputPrompt, req.Metrics); !ok {
		httptransport.WriteValidationError(w, "compare", reason)
		return
	}
	if len(req.Outputs) < 2 {
		httptransport.WriteValidationError(w, "outputs", "must contain at least two candidates")
		return
	}

	entries := make([]ComparisonEntry, 0, len(req.Outputs))
	for i, output := range req.Outputs {
		result, err := s.engine.Assess(r.Context(), AssessmentRequest{
			InputPrompt: req.InputPrompt,
			AIOutput:    output,
			Context:     req.Context,
			Metrics:     req.Metrics,
			Strategy:    contracts.StrategyComparative,
		})
		if err != nil {
			httptransport.WriteError(w, sharederrors.ConfigurationError("judges", err.Error()))
			return
		}
		entries = append(entries, ComparisonEntry{Index: i, OverallScore: result.OverallScore})
	}

	httptransport.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	since, ok := httptransport.ParseSince(r)
	if !ok {
		httptransport.WriteValidationError(w, "since", "must be an RFC3339 timestamp")
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, s.recentSince(since))
}

// record wraps a standalone assessment into the TestResult shape the
// aggregator's pull fallback consumes.
func (s *Server) record(assessment contracts.QualityAssessmentResult) {
	qualityScores := make(map[contracts.QualityMetric]float64, len(assessment.Scores))
	for _, score := range assessment.Scores {
		qualityScores[score.Metric] = score.Score
	}
	result := contracts.TestResult{
		ExecutionID:   "quality_" + uuid.NewString(),
		TestType:      contracts.TestTypeAIQuality,
		Passed:        assessment.OverallScore >= s.passThreshold,
		Score:         assessment.OverallScore,
		QualityScores: qualityScores,
		QualityResult: &assessment,
		RecordedAt:    time.Now(),
	}

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

func validateAssessBody(inputPrompt string, metrics []contracts.QualityMetric) (string, bool) {
	if inputPrompt == "" {
		return "input_prompt must not be empty", false
	}
	if len(metrics) == 0 {
		return "quality_metrics must not be empty", false
	}
	return "", true
}

func backendLabel(modelsUsed []string) string {
	if len(modelsUsed) == 0 {
		return "none"
	}
	return modelsUsed[0]
}

func strategyOrDefault(strategy contracts.JudgeStrategy) contracts.JudgeStrategy {
	if strategy == "" {
		return contracts.StrategySingle
	}
	return strategy
}
