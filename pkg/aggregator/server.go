package aggregator

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/httptransport"
)

// reportRegistryCap bounds how many generated reports are retained for
// GET /export; the oldest is evicted first.
const reportRegistryCap = 100

// CollectRequest is the POST /collect body. A zero Since defaults to
// the last hour.
type CollectRequest struct {
	Since time.Time `json:"since,omitempty"`
}

// CollectResponse reports how many results the fan-out ingested.
type CollectResponse struct {
	Collected int `json:"collected"`
}

// ReportResponse wraps a generated report with the ID GET /export
// retrieves it by.
type ReportResponse struct {
	ReportID string            `json:"report_id"`
	Report   AggregatedResults `json:"report"`
}

// Server is the aggregator's HTTP surface: POST /collect, POST /report,
// GET /export/{report_id} and GET /health.
type Server struct {
	window    *Window
	reporter  *Reporter
	collector *Collector
	health    *health.Aggregator
	log       *logrus.Logger

	mu      sync.Mutex
	reports map[string]AggregatedResults
	order   []string
}

// NewServer builds the HTTP surface over window/reporter. collector may
// be nil when no executor sources are configured; POST /collect then
// reports zero collected.
func NewServer(window *Window, reporter *Reporter, collector *Collector, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		window:    window,
		reporter:  reporter,
		collector: collector,
		health:    healthAgg,
		log:       log,
		reports:   make(map[string]AggregatedResults),
	}
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("aggregator", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/collect", s.handleCollect)
	r.Post("/report", s.handleReport)
	r.Get("/export/{reportID}", s.handleExport)
	return r
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req CollectRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if s.collector == nil {
		httptransport.WriteJSON(w, http.StatusOK, CollectResponse{Collected: 0})
		return
	}
	since := req.Since
	if since.IsZero() {
		since = time.Now().Add(-time.Hour)
	}

	n, err := s.collector.Collect(r.Context(), since)
	if err != nil {
		httptransport.WriteError(w, err)
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, CollectResponse{Collected: n})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if req.EndTime.IsZero() {
		req.EndTime = time.Now()
	}
	if req.StartTime.IsZero() {
		req.StartTime = req.EndTime.Add(-24 * time.Hour)
	}
	if req.EndTime.Before(req.StartTime) {
		httptransport.WriteValidationError(w, "end_time", "must not precede start_time")
		return
	}

	report := s.reporter.Generate(req)
	id := s.register(report)

	httptransport.WriteJSON(w, http.StatusOK, ReportResponse{ReportID: id, Report: report})
}

// handleExport re-renders a previously generated report in the requested
// format. JSON is the default; the rendered bytes carry the matching
// content type.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	s.mu.Lock()
	report, ok := s.reports[id]
	s.mu.Unlock()
	if !ok {
		httptransport.WriteJSON(w, http.StatusNotFound, httptransport.ErrorResponse{
			Error:   "not_found",
			Message: "no report with id " + id,
		})
		return
	}

	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatJSON
	}
	data, err := Export(report, format)
	if err != nil {
		httptransport.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) register(report AggregatedResults) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = report
	s.order = append(s.order, id)
	for len(s.order) > reportRegistryCap {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return id
}

func contentTypeFor(format ExportFormat) string {
	switch format {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}
