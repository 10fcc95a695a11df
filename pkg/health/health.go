// Package health implements the GET /health contract shared by every
// service: a status rollup over named dependency checks, exposed as the
// same JSON body from the orchestrator, each executor and the aggregator.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Status is one of the three health states a service or dependency can
// report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worseOf returns whichever of a, b ranks worse, healthy < degraded <
// unhealthy.
func worseOf(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Checker is one named dependency a service depends on (a browser
// context pool, a configured judge backend, a Redis client, ...).
// Check must not block indefinitely; it should respect ctx's deadline
// and return StatusUnhealthy rather than hang.
type Checker interface {
	Name() string
	Check(ctx context.Context) Status
}

// CheckerFunc adapts a plain function to a Checker.
type CheckerFunc struct {
	CheckerName string
	Fn          func(ctx context.Context) Status
}

func (c CheckerFunc) Name() string                    { return c.CheckerName }
func (c CheckerFunc) Check(ctx context.Context) Status { return c.Fn(ctx) }

// Response is the GET /health JSON body.
type Response struct {
	ServiceName  string            `json:"service_name"`
	Status       Status            `json:"status"`
	Version      string            `json:"version"`
	Dependencies map[string]Status `json:"dependencies,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// Aggregator runs a fixed set of Checkers and rolls their results (plus
// any ambient metrics a caller wants surfaced) into one Response. A
// service with no configured dependency (e.g. a judge engine with no
// backend wired) is a configuration error per the platform's error
// taxonomy and should report StatusUnhealthy through its own Checker
// rather than being silently omitted here.
type Aggregator struct {
	ServiceName string
	Version     string
	Checkers    []Checker
	Timeout     time.Duration
	Metrics     func() map[string]float64
	log         *logrus.Entry
}

// NewAggregator builds an Aggregator. timeout bounds every Checker's
// Check call; zero defaults to 2 seconds.
func NewAggregator(serviceName, version string, checkers []Checker, timeout time.Duration, log *logrus.Logger) *Aggregator {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{
		ServiceName: serviceName,
		Version:     version,
		Checkers:    checkers,
		Timeout:     timeout,
		log:         log.WithFields(logging.Fields{}.Component("health").ToLogrus()),
	}
}

// Check runs every configured Checker and rolls the result into a
// Response. A service with no Checkers configured is always healthy —
// there is nothing for it to depend on.
func (a *Aggregator) Check(ctx context.Context) Response {
	resp := Response{
		ServiceName:  a.ServiceName,
		Status:       StatusHealthy,
		Version:      a.Version,
		Dependencies: make(map[string]Status, len(a.Checkers)),
	}
	for _, c := range a.Checkers {
		checkCtx, cancel := context.WithTimeout(ctx, a.Timeout)
		status := c.Check(checkCtx)
		cancel()
		resp.Dependencies[c.Name()] = status
		resp.Status = worseOf(resp.Status, status)
		if status != StatusHealthy {
			a.log.WithFields(logging.Fields{}.Custom("dependency", c.Name()).Custom("status", status).ToLogrus()).
				Warn("dependency health check degraded")
		}
	}
	if a.Metrics != nil {
		resp.Metrics = a.Metrics()
	}
	return resp
}

// Handler returns an http.HandlerFunc serving this Aggregator's Check
// result as JSON, with the HTTP status code matching §6's propagation
// policy: 200 for healthy/degraded (the service is still serving
// traffic), 503 for unhealthy.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := a.Check(r.Context())
		code := http.StatusOK
		if resp.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
