package browsertester

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/httptransport"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

const recentResultsCap = 256

// ExecuteRequest is the POST /execute body. PerformanceThresholds
// carries the scenario-level thresholds a bare spec run has no
// TestScenario to supply.
type ExecuteRequest struct {
	Spec                  *contracts.UITestSpec  `json:"spec"`
	Context               *contracts.TestContext `json:"context,omitempty"`
	PerformanceThresholds map[string]float64     `json:"performance_thresholds,omitempty"`
}

// ScreenshotRequest is the POST /screenshot body: capture one page
// without running any actions or assertions.
type ScreenshotRequest struct {
	PageURL  string                 `json:"page_url"`
	Browser  contracts.BrowserType  `json:"browser,omitempty"`
	Viewport contracts.ViewportSize `json:"viewport,omitempty"`
}

// ScreenshotResponse carries the evidence path the capture was written to.
type ScreenshotResponse struct {
	Path string `json:"path"`
}

// Server is the browser tester's HTTP surface: POST /execute,
// POST /screenshot, GET /results and GET /health.
type Server struct {
	executor    *Executor
	pool        *ContextPool
	evidenceDir string
	health      *health.Aggregator
	log         *logrus.Logger

	mu     sync.Mutex
	recent []contracts.TestResult
}

// NewServer builds the HTTP surface over executor and its pool.
// evidenceDir is where POST /screenshot captures are persisted.
func NewServer(executor *Executor, pool *ContextPool, evidenceDir string, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		executor:    executor,
		pool:        pool,
		evidenceDir: evidenceDir,
		health:      healthAgg,
		log:         log,
	}
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("browser-tester", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/execute", s.handleExecute)
	r.Post("/screenshot", s.handleScreenshot)
	r.Get("/results", s.handleResults)
	return r
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
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

	result := s.executor.Execute(r.Context(), req.Spec, RunOptions{
		PerformanceThresholds: req.PerformanceThresholds,
	})
	if result.ExecutionID == "" {
		result.ExecutionID = "browsertester_" + uuid.NewString()
	}
	s.record(*result)

	httptransport.WriteJSON(w, http.StatusOK, result)
}

// handleScreenshot acquires a context, navigates, captures, and persists
// the image under the evidence directory. Pool exhaustion is a capacity
// error (503, retryable by the caller), not a test failure.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	var req ScreenshotRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if req.PageURL == "" {
		httptransport.WriteValidationError(w, "page_url", "must not be empty")
		return
	}
	if req.Browser == "" {
		req.Browser = contracts.BrowserChromium
	}
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		req.Viewport = contracts.ViewportSize{Width: 1280, Height: 720}
	}

	page, release, err := s.pool.Acquire(r.Context(), req.Browser, req.Viewport)
	if err != nil {
		if sharederrors.IsRetryable(err) {
			httptransport.WriteJSON(w, http.StatusServiceUnavailable, httptransport.ErrorResponse{
				Error:   "capacity_exceeded",
				Message: err.Error(),
			})
			return
		}
		httptransport.WriteError(w, err)
		return
	}
	defer release()

	if err := page.Navigate(r.Context(), req.PageURL); err != nil {
		httptransport.WriteError(w, sharederrors.NetworkError("navigate", req.PageURL, err))
		return
	}
	img, err := page.Screenshot(r.Context())
	if err != nil {
		httptransport.WriteError(w, sharederrors.FailedTo("capture screenshot", err))
		return
	}

	path := filepath.Join(s.evidenceDir, "screenshot_"+uuid.NewString()+".png")
	if err := os.MkdirAll(s.evidenceDir, 0o755); err != nil {
		httptransport.WriteError(w, sharederrors.FailedTo("create evidence directory", err))
		return
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		httptransport.WriteError(w, sharederrors.FailedTo("persist screenshot", err))
		return
	}

	httptransport.WriteJSON(w, http.StatusOK, ScreenshotResponse{Path: path})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	since, ok := httptransport.ParseSince(r)
	if !ok {
		httptransport.WriteValidationError(w, "since", "must be an RFC3339 timestamp")
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, s.recentSince(since))
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
