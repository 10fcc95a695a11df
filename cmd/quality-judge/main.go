// The quality-judge service (C5): multi-strategy LLM-as-judge scoring
// with a content-addressed result cache.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/qualityjudge"
)

func main() {
	runtime.Run("quality-judge", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		judges, err := buildJudges(cfg)
		if err != nil {
			return nil, err
		}
		engine := qualityjudge.NewEngine(judges...)

		var redisClient *redis.Client
		if cfg.AIQuality.RedisAddr != "" {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.AIQuality.RedisAddr})
		}
		ttl := time.Duration(cfg.AIQuality.CacheTTLSeconds) * time.Second
		engine = engine.WithCache(qualityjudge.NewCache(redisClient, ttl, cfg.AIQuality.MinCacheConfidence))

		checkers := []health.Checker{
			health.CheckerFunc{CheckerName: "judges", Fn: func(context.Context) health.Status {
				if len(judges) == 0 {
					return health.StatusUnhealthy
				}
				return health.StatusHealthy
			}},
		}
		if redisClient != nil {
			checkers = append(checkers, health.CheckerFunc{CheckerName: "redis", Fn: func(ctx context.Context) health.Status {
				if err := redisClient.Ping(ctx).Err(); err != nil {
					// The cache degrades to in-memory; the service keeps serving.
					return health.StatusDegraded
				}
				return health.StatusHealthy
			}})
		}
		healthAgg := health.NewAggregator("quality-judge", runtime.Version, checkers, 0, log)

		server := qualityjudge.NewServer(engine, cfg.AIQuality.PassThreshold, healthAgg, log)
		return server.Router(), nil
	})
}

// buildJudges wires the configured backend, falling back to the
// deterministic reference judge when no LLM endpoint is configured.
func buildJudges(cfg *config.ServiceConfig) ([]qualityjudge.Judge, error) {
	if cfg.AIQuality.BackendURL == "" {
		return []qualityjudge.Judge{qualityjudge.NewReferenceJudge("reference")}, nil
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.AIQuality.BackendURL),
		openai.WithModel(cfg.AIQuality.BackendModel),
	)
	if err != nil {
		return nil, err
	}
	return []qualityjudge.Judge{qualityjudge.NewLLMJudge(cfg.AIQuality.BackendModel, model)}, nil
}
