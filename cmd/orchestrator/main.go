// The orchestrator service (C8): session lifecycle, phased plan
// execution against in-process executors, composite verdicts, and the
// event-bus wiring that feeds the aggregator window and alert engine.
package main

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/aggregator"
	"github.com/qualitymesh/aat-core/pkg/alerting"
	"github.com/qualitymesh/aat-core/pkg/apitester"
	"github.com/qualitymesh/aat-core/pkg/browsertester"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/orchestrator"
	"github.com/qualitymesh/aat-core/pkg/qualityjudge"
	"github.com/qualitymesh/aat-core/pkg/scenario"
)

func main() {
	runtime.Run("orchestrator", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		bus := eventbus.New(log)

		// Executors run in-process; their phase results flow onto the bus
		// as result.recorded events, which both the aggregation window and
		// the alert engine subscribe to.
		apiExecutor := apitester.NewExecutor(cfg.APITester.MaxRetries, log)

		factory := browsertester.UnconfiguredFactory("no browser engine bound to this deployment")
		pool := browsertester.NewContextPool(cfg.BrowserAutomation.MaxConcurrentContexts, factory, log)
		uiExecutor := browsertester.NewExecutor(pool)

		judgeEngine := qualityjudge.NewEngine(qualityjudge.NewReferenceJudge("reference"))

		maxAge := time.Duration(cfg.Aggregator.MaxAgeDays) * 24 * time.Hour
		window := aggregator.NewWindow(cfg.Aggregator.MaxStoredResults, maxAge, log)
		window.Subscribe(bus)

		alertStore := alerting.NewStore()
		alertEngine := alerting.NewEngine(nil, alerting.NewRateLimiter(nil), alerting.NewTemplateSet(), alertStore, bus, log)
		alertEngine.Subscribe(bus)

		runners := orchestrator.Runners{
			API:     apiExecutor,
			UI:      uiExecutor,
			Quality: judgeEngine,
		}
		orch := orchestrator.NewOrchestrator(runners, bus, cfg.Orchestrator.QualityThreshold, log)

		healthAgg := health.NewAggregator("orchestrator", runtime.Version, nil, 0, log)
		server := orchestrator.NewServer(orch, cfg.Orchestrator.SessionTimeout, healthAgg, log)

		if cfg.Orchestrator.ScenarioDir != "" {
			store, err := scenario.NewStore(cfg.Orchestrator.ScenarioDir, log)
			if err != nil {
				return nil, err
			}
			server = server.WithScenarioStore(store)
		}
		return server.Router(), nil
	})
}
