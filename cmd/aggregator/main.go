// The aggregator service (C6): sliding-window result store, trend and
// anomaly analysis, report generation and export, plus the pull-fallback
// poll of executor history.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/aggregator"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/shared/httpclient"
)

func main() {
	runtime.Run("aggregator", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		maxAge := time.Duration(cfg.Aggregator.MaxAgeDays) * 24 * time.Hour
		window := aggregator.NewWindow(cfg.Aggregator.MaxStoredResults, maxAge, log)
		reporter := aggregator.NewReporter(window, cfg.Aggregator.AnomalySigma, cfg.Aggregator.MinDataPointsForTrend)

		var collector *aggregator.Collector
		if len(cfg.Aggregator.ExecutorSources) > 0 {
			sources := make([]aggregator.ExecutorSource, 0, len(cfg.Aggregator.ExecutorSources))
			for _, src := range cfg.Aggregator.ExecutorSources {
				sources = append(sources, aggregator.ExecutorSource{Name: src.Name, BaseURL: src.BaseURL})
			}
			collector = aggregator.NewCollector(httpclient.NewDefaultClient(), sources, window, log)
			go collector.RunForever(context.Background(), cfg.Aggregator.CollectInterval)
		}

		healthAgg := health.NewAggregator("aggregator", runtime.Version, nil, 0, log)
		healthAgg.Metrics = func() map[string]float64 {
			return map[string]float64{"window_size": float64(window.Len())}
		}

		server := aggregator.NewServer(window, reporter, collector, healthAgg, log)
		return server.Router(), nil
	})
}
