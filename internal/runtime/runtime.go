// Package runtime is the shared bootstrap every binary under cmd/ uses:
// flag parsing, configuration loading (defaults -> YAML -> environment),
// logger construction, the Prometheus metrics sidecar, and a graceful
// HTTP server lifecycle.
package runtime

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/pkg/metrics"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// BuildFunc assembles a service's HTTP handler from its loaded
// configuration. Returning an error aborts startup (a configuration
// error per the platform's taxonomy).
type BuildFunc func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error)

// Run is the main loop shared by every service binary: load config, build
// the handler, serve until SIGINT/SIGTERM, then drain.
func Run(serviceName string, build BuildFunc) {
	configPath := flag.String("config", "", "path to the service's YAML configuration")
	metricsPort := flag.String("metrics-port", "9090", "port for the Prometheus /metrics sidecar (empty disables)")
	logLevel := flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	flag.Parse()

	log := newLogger(*logLevel)
	entry := log.WithFields(logging.Fields{}.Component(serviceName).Version(Version).ToLogrus())

	cfg, err := loadConfig(*configPath)
	if err != nil {
		entry.WithError(err).Fatal("configuration load failed")
	}

	handler, err := build(cfg, log)
	if err != nil {
		entry.WithError(err).Fatal("service construction failed")
	}

	var metricsServer *metrics.Server
	if *metricsPort != "" {
		metricsServer = metrics.NewServer(*metricsPort, log)
		metricsServer.StartAsync()
	}

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		entry.WithField("addr", cfg.Server.ListenAddr).Info("serving")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		entry.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("drain incomplete")
	}
	if metricsServer != nil {
		_ = metricsServer.Stop(shutdownCtx)
	}
}

func loadConfig(path string) (*config.ServiceConfig, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
