// The alert-engine service (C7): rule evaluation, templated
// notifications, rate-limited multi-channel delivery with retries, and
// the hourly retention sweep.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/internal/config"
	"github.com/qualitymesh/aat-core/internal/runtime"
	"github.com/qualitymesh/aat-core/pkg/alerting"
	"github.com/qualitymesh/aat-core/pkg/health"
	"github.com/qualitymesh/aat-core/pkg/shared/httpclient"
)

const deliveryTick = time.Second

func main() {
	runtime.Run("alert-engine", func(cfg *config.ServiceConfig, log *logrus.Logger) (http.Handler, error) {
		store := alerting.NewStore()

		var redisClient *redis.Client
		if cfg.AIQuality.RedisAddr != "" {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.AIQuality.RedisAddr})
		}
		limiter := alerting.NewRateLimiter(redisClient)

		engine := alerting.NewEngine(nil, limiter, alerting.NewTemplateSet(), store, nil, log)
		channels := buildChannels(cfg)

		delivery := alerting.NewDeliveryWorker(store, channels, log)
		go func() {
			ticker := time.NewTicker(deliveryTick)
			defer ticker.Stop()
			for range ticker.C {
				delivery.Tick(context.Background())
			}
		}()

		cleanup := alerting.NewCleanupWorker(store, log)
		go cleanup.RunForever(make(chan struct{}))

		checkers := make([]health.Checker, 0, len(channels))
		for _, ch := range channels {
			ch := ch
			checkers = append(checkers, health.CheckerFunc{
				CheckerName: "channel_" + string(ch.Name()),
				Fn: func(context.Context) health.Status {
					if ch.ValidateConfig() {
						return health.StatusHealthy
					}
					return health.StatusDegraded
				},
			})
		}
		healthAgg := health.NewAggregator("alert-engine", runtime.Version, checkers, 0, log)

		server := alerting.NewServer(engine, store, healthAgg, log)
		return server.Router(), nil
	})
}

// buildChannels wires every delivery channel the configuration enables.
// CONSOLE is always available; FILE, SLACK and WEBHOOK only when
// configured.
func buildChannels(cfg *config.ServiceConfig) []alerting.Channel {
	channels := []alerting.Channel{
		alerting.NewConsoleChannel(func(line string) { fmt.Println(line) }),
	}
	if cfg.Notification.File.Directory != "" {
		channels = append(channels, alerting.NewFileChannel(cfg.Notification.File.Directory))
	}
	if cfg.Notification.Slack.WebhookURL != "" {
		client := httpclient.NewClient(httpclient.SlackClientConfig())
		channels = append(channels, alerting.NewSlackChannel(client, cfg.Notification.Slack.WebhookURL, cfg.Notification.Slack.Channel))
	}
	if cfg.Notification.Webhook.URL != "" {
		channels = append(channels, alerting.NewWebhookChannel(httpclient.NewDefaultClient(), cfg.Notification.Webhook.URL, cfg.Notification.Webhook.Method))
	}
	return channels
}
