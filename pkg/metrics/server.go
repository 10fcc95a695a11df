package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes this process's registered collectors on /metrics and
// a bare liveness stub on /health, independent of the richer
// dependency-rollup health endpoint each service's primary HTTP
// surface serves.
type Server struct {
	server *http.Server
	log    *logrus.Entry
}

// NewServer builds a Server bound to port (no leading colon).
func NewServer(port string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: mux,
		},
		log: log.WithField("component", "metrics_server"),
	}
}

// StartAsync starts the server in a background goroutine. Failures
// other than a graceful shutdown are logged, not returned, matching
// the fire-and-forget lifecycle the rest of this platform's services
// use for their ambient ports.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
