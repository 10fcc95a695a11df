package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
	"github.com/qualitymesh/aat-core/pkg/metrics"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Engine evaluates Rules against incoming TestResults, rate-limits and
// schedules firing, and synthesises an Alert plus one Notification per
// (recipient, channel) pair for every admitted match.
type Engine struct {
	rules     []Rule
	limiter   *RateLimiter
	templates *TemplateSet
	store     *Store
	bus       *eventbus.Bus
	log       *logrus.Entry

	now func() time.Time
}

// NewEngine builds an Engine. bus and log may be nil.
func NewEngine(rules []Rule, limiter *RateLimiter, templates *TemplateSet, store *Store, bus *eventbus.Bus, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if templates == nil {
		templates = NewTemplateSet()
	}
	return &Engine{
		rules:     rules,
		limiter:   limiter,
		templates: templates,
		store:     store,
		bus:       bus,
		log:       log.WithFields(logging.Fields{}.Component("alerting").ToLogrus()),
		now:       time.Now,
	}
}

// Subscribe wires Evaluate up to eventbus.TopicResultRecorded.
func (e *Engine) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	return bus.Subscribe(eventbus.TopicResultRecorded, func(event eventbus.Event) {
		result, ok := event.Payload.(*contracts.TestResult)
		if !ok {
			e.log.Warn("result.recorded event carried an unexpected payload type")
			return
		}
		e.Evaluate(context.Background(), *result)
	})
}

// Evaluate runs result against every enabled rule, synthesising Alerts
// and Notifications for each admitted match. Returns the Alerts raised.
func (e *Engine) Evaluate(ctx context.Context, result contracts.TestResult) []contracts.Alert {
	now := e.now()
	var fired []contracts.Alert

	for _, rule := range e.rules {
		if !rule.Enabled || !rule.Matches(result) {
			continue
		}
		if !rule.Schedule.Active(now) {
			continue
		}
		if !rule.MeetsPriority(rule.Severity) {
			continue
		}
		if e.limiter != nil && !e.limiter.Admit(ctx, rule.Name, cooldownOrDefault(rule.Cooldown), hourlyCapOrDefault(rule.HourlyCap), now) {
			continue
		}

		alert := e.synthesizeAlert(rule, result, now)
		if e.limiter != nil {
			e.limiter.Record(ctx, rule.Name, now)
		}
		if e.store != nil {
			e.store.PutAlert(alert)
		}
		for _, notification := range e.notificationsFor(rule, alert, now) {
			if e.store != nil {
				e.store.PutNotification(notification)
			}
		}
		if e.bus != nil {
			e.bus.Publish(eventbus.Event{Topic: eventbus.TopicAlertFired, Payload: &alert})
		}
		metrics.RecordAlertFired(string(alert.Severity))
		fired = append(fired, alert)
	}
	return fired
}

// Raise fires a caller-synthesised Alert outside any rule evaluation
// (the POST /alert surface). It bypasses rule predicates, schedules and
// rate limits — the caller has already decided this alert matters — but
// still renders one Notification per recipient and publishes on the bus.
func (e *Engine) Raise(alertType string, severity contracts.AlertSeverity, message string, labels map[string]string, recipients []Recipient) contracts.Alert {
	now := e.now()
	alert := contracts.Alert{
		ID:         uuid.NewString(),
		RuleName:   "custom",
		Severity:   severity,
		State:      contracts.AlertFiring,
		Message:    message,
		SourceType: "custom",
		FiredAt:    now,
		Labels:     labels,
	}
	if e.store != nil {
		e.store.PutAlert(alert)
	}
	for _, recipient := range recipients {
		body := Render(e.templates.Resolve(alertType, recipient.Channel), alert, alertType, nil)
		notification := contracts.Notification{
			ID:          uuid.NewString(),
			AlertID:     alert.ID,
			Channel:     recipient.Channel,
			State:       contracts.NotificationPending,
			Recipient:   recipient.Address,
			Subject:     alertTitle(alert),
			Body:        body,
			Priority:    string(alert.Severity),
			MaxAttempts: defaultMaxRetries,
			CreatedAt:   now,
		}
		if e.store != nil {
			e.store.PutNotification(notification)
		}
	}
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Topic: eventbus.TopicAlertFired, Payload: &alert})
	}
	metrics.RecordAlertFired(string(alert.Severity))
	return alert
}

func (e *Engine) synthesizeAlert(rule Rule, result contracts.TestResult, now time.Time) contracts.Alert {
	return contracts.Alert{
		ID:         uuid.NewString(),
		RuleName:   rule.Name,
		Severity:   rule.Severity,
		State:      contracts.AlertFiring,
		Message:    alertMessage(rule, result),
		SourceType: "test_result",
		SourceID:   result.ExecutionID,
		FiredAt:    now,
		Labels: map[string]string{
			"scenario_id": result.ScenarioID,
			"test_type":   string(result.TestType),
		},
	}
}

func alertMessage(rule Rule, result contracts.TestResult) string {
	if result.Passed {
		return "rule " + rule.Name + " triggered for scenario " + result.ScenarioID
	}
	return "scenario " + result.ScenarioID + " failed: rule " + rule.Name
}

func (e *Engine) notificationsFor(rule Rule, alert contracts.Alert, now time.Time) []contracts.Notification {
	alertType := alertTypeFor(rule)
	notifications := make([]contracts.Notification, 0, len(rule.Recipients))
	for _, recipient := range rule.Recipients {
		body := Render(e.templates.Resolve(alertType, recipient.Channel), alert, alertType, nil)
		notifications = append(notifications, contracts.Notification{
			ID:          uuid.NewString(),
			AlertID:     alert.ID,
			Channel:     recipient.Channel,
			State:       contracts.NotificationPending,
			Recipient:   recipient.Address,
			Subject:     alertTitle(alert),
			Body:        body,
			Priority:    string(alert.Severity),
			MaxAttempts: defaultMaxRetries,
			CreatedAt:   now,
		})
	}
	return notifications
}

func alertTypeFor(rule Rule) string {
	if len(rule.AlertTypes) > 0 {
		return rule.AlertTypes[0]
	}
	return "GENERIC"
}

const (
	defaultCooldown  = 15 * time.Minute
	defaultHourlyCap = 10
	defaultMaxRetries = 3
)

func cooldownOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultCooldown
	}
	return d
}

func hourlyCapOrDefault(cap int) int {
	if cap <= 0 {
		return defaultHourlyCap
	}
	return cap
}
