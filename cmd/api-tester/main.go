// The api-tester service (C3): functional endpoint probes and
// bounded-concurrency load runs.
package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/apitester"
	"github.com/qualitymesh/aat-core/pkg/health"
)

func main() {
	runtime.Run("api-tester", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		executor := apitester.NewExecutor(cfg.APITester.MaxRetries, log)
		healthAgg := health.NewAggregator("api-tester", runtime.Version, nil, 0, log)
		server := apitester.NewServer(executor, cfg.APITester.LoadTestMaxUsers, healthAgg, log)
		return server.Router(), nil
	})
}
