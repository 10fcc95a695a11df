package alerting

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/httptransport"
)

// RaiseAlertRequest is the POST /alert body: a caller-synthesised alert
// plus the recipients to notify.
type RaiseAlertRequest struct {
	AlertType  string                 `json:"alert_type"`
	Severity   contracts.AlertSeverity `json:"severity"`
	Message    string                 `json:"message"`
	Labels     map[string]string      `json:"labels,omitempty"`
	Recipients []Recipient            `json:"recipients,omitempty"`
}

// AcknowledgeRequest is the POST /alerts/{id}/acknowledge body.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// Server is the alert engine's HTTP surface: POST /alert, GET /alerts,
// the acknowledge/resolve state transitions, and GET /health.
type Server struct {
	engine *Engine
	store  *Store
	health *health.Aggregator
	log    *logrus.Logger
}

// NewServer builds the HTTP surface over engine and store.
func NewServer(engine *Engine, store *Store, healthAgg *health.Aggregator, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{engine: engine, store: store, health: healthAgg, log: log}
}

// Router mounts every endpoint on a preconfigured chi router.
func (s *Server) Router() chi.Router {
	r := httptransport.NewRouter("alert-engine", s.log)
	r.Get("/health", s.health.Handler())
	r.Post("/alert", s.handleRaise)
	r.Get("/alerts", s.handleList)
	r.Post("/alerts/{alertID}/acknowledge", s.handleAcknowledge)
	r.Post("/alerts/{alertID}/resolve", s.handleResolve)
	return r
}

func (s *Server) handleRaise(w http.ResponseWriter, r *http.Request) {
	var req RaiseAlertRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	if req.Message == "" {
		httptransport.WriteValidationError(w, "message", "must not be empty")
		return
	}
	switch req.Severity {
	case contracts.SeverityInfo, contracts.SeverityWarning, contracts.SeverityCritical:
	case "":
		req.Severity = contracts.SeverityInfo
	default:
		httptransport.WriteValidationError(w, "severity", "unknown severity: "+string(req.Severity))
		return
	}
	if req.AlertType == "" {
		req.AlertType = "GENERIC"
	}

	alert := s.engine.Raise(req.AlertType, req.Severity, req.Message, req.Labels, req.Recipients)
	httptransport.WriteJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	alerts := s.store.ActiveAlerts()
	if alerts == nil {
		alerts = []contracts.Alert{}
	}
	httptransport.WriteJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req AcknowledgeRequest
	if err := httptransport.DecodeJSON(r, &req); err != nil {
		httptransport.WriteDecodeError(w, err)
		return
	}
	id := chi.URLParam(r, "alertID")

	alert, err := s.store.UpdateAlert(id, func(a *contracts.Alert) error {
		if err := a.Transition(contracts.AlertAcknowledged); err != nil {
			return err
		}
		a.AcknowledgedBy = req.AcknowledgedBy
		return nil
	})
	if err != nil {
		s.writeTransitionError(w, id, err)
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, alert)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")

	alert, err := s.store.UpdateAlert(id, func(a *contracts.Alert) error {
		return a.Transition(contracts.AlertResolved)
	})
	if err != nil {
		s.writeTransitionError(w, id, err)
		return
	}
	httptransport.WriteJSON(w, http.StatusOK, alert)
}

// writeTransitionError distinguishes "no such alert" (404) from an
// illegal state-machine transition (409).
func (s *Server) writeTransitionError(w http.ResponseWriter, id string, err error) {
	if _, ok := s.store.GetAlert(id); !ok {
		httptransport.WriteJSON(w, http.StatusNotFound, httptransport.ErrorResponse{
			Error:   "not_found",
			Message: "no alert with id " + id,
		})
		return
	}
	if _, isTransition := err.(*contracts.InvalidTransitionError); isTransition {
		httptransport.WriteJSON(w, http.StatusConflict, httptransport.ErrorResponse{
			Error:   "invalid_transition",
			Message: err.Error(),
		})
		return
	}
	httptransport.WriteError(w, err)
}
