// The browser-tester service (C4): bounded browser context pool,
// action/assertion execution, screenshot capture.
//
// The Page seam is where a real CDP/WebDriver binding plugs in; without
// one the service starts with an unconfigured factory, reports
// unhealthy, and rejects work — the orchestrator then refuses to
// schedule UI phases against it.
package main

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/browsertester"
	"github.com/qualitymesh/aat-core/pkg/health"
)

func main() {
	runtime.Run("browser-tester", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		factory := browsertester.UnconfiguredFactory("no browser engine bound to this deployment")
		pool := browsertester.NewContextPool(cfg.BrowserAutomation.MaxConcurrentContexts, factory, log)
		executor := browsertester.NewExecutor(pool)

		checkers := []health.Checker{
			health.CheckerFunc{CheckerName: "browser_engine", Fn: func(context.Context) health.Status {
				return health.StatusUnhealthy
			}},
		}
		healthAgg := health.NewAggregator("browser-tester", runtime.Version, checkers, 0, log)
		healthAgg.Metrics = func() map[string]float64 {
			return map[string]float64{
				"active_contexts": float64(pool.ActiveCount()),
				"pool_capacity":   float64(pool.Capacity()),
			}
		}

		server := browsertester.NewServer(executor, pool, cfg.BrowserAutomation.EvidenceDir, healthAgg, log)
		return server.Router(), nil
	})
}
