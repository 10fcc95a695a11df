// Package httptransport provides the HTTP plumbing shared by every
// service's surface: a chi router preconfigured with request ID,
// panic recovery, structured request logging and Prometheus metrics
// middleware, plus JSON request/response helpers and the platform's
// HTTP 422 structured error body.
package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/metrics"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// NewRouter builds a chi.Router for serviceName wired with the ambient
// middleware chain every service's HTTP surface uses: chi's built-in
// request ID and panic recovery, then structured request logging and
// HTTP metrics.
func NewRouter(serviceName string, log *logrus.Logger) chi.Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(serviceName, log))
	r.Use(HTTPMetrics())
	return r
}

// RequestLogger logs one structured line per request: method, path,
// status, duration and the chi request ID, at the level the outcome
// warrants (Info for 2xx/3xx, Warn for 4xx, Error for 5xx).
func RequestLogger(serviceName string, log *logrus.Logger) func(http.Handler) http.Handler {
	entry := log.WithFields(logging.Fields{}.Component(serviceName).ToLogrus())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := logging.HTTPFields(r.Method, r.URL.Path, status).
				Duration(time.Since(start)).
				Custom("request_id", middleware.GetReqID(r.Context())).
				ToLogrus()

			switch {
			case status >= 500:
				entry.WithFields(fields).Error("request completed")
			case status >= 400:
				entry.WithFields(fields).Warn("request completed")
			default:
				entry.WithFields(fields).Info("request completed")
			}
		})
	}
}

// HTTPMetrics records every request's duration against
// metrics.HTTPRequestDuration, labeled by route pattern and status
// code. It is nil-safe by construction: the metrics package's
// collectors are always initialized at package load.
func HTTPMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			metrics.RecordHTTPRequest(route, statusLabel(ww.Status()), time.Since(start))
		})
	}
}

func statusLabel(code int) string {
	if code == 0 {
		code = http.StatusOK
	}
	return strconv.Itoa(code)
}
