package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/metrics"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

const deliveryBatchSize = 10

// retryDelay is the linear back-off schedule: 30 * (retryCount+1) seconds.
func retryDelay(retryCount int) time.Duration {
	return time.Duration(30*(retryCount+1)) * time.Second
}

// DeliveryWorker drains PENDING notifications from a Store in batches of
// up to 10 per tick, dispatching each batch's deliveries concurrently
// across the Channel registered for its NotificationChannel. A channel
// failure only affects the notification being delivered over it.
type DeliveryWorker struct {
	store    *Store
	channels map[contracts.NotificationChannel]Channel
	log      *logrus.Entry

	retryReady map[string]time.Time
	mu         sync.Mutex
	now        func() time.Time
}

// NewDeliveryWorker builds a DeliveryWorker dispatching over channels,
// keyed by NotificationChannel.
func NewDeliveryWorker(store *Store, channels []Channel, log *logrus.Logger) *DeliveryWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	registry := make(map[contracts.NotificationChannel]Channel, len(channels))
	for _, c := range channels {
		registry[c.Name()] = c
	}
	return &DeliveryWorker{
		store:      store,
		channels:   registry,
		log:        log.WithFields(logging.Fields{}.Component("alerting.delivery").ToLogrus()),
		retryReady: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Tick processes up to one batch of pending notifications, returning how
// many were attempted this tick.
func (w *DeliveryWorker) Tick(ctx context.Context) int {
	now := w.now()
	candidates := w.store.PendingNotifications(0)

	var batch []contracts.Notification
	for _, n := range candidates {
		if !w.readyForRetry(n.ID, now) {
			continue
		}
		batch = append(batch, n)
		if len(batch) == deliveryBatchSize {
			break
		}
	}
	if len(batch) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	for _, n := range batch {
		wg.Add(1)
		go func(n contracts.Notification) {
			defer wg.Done()
			w.deliverOne(ctx, n, now)
		}(n)
	}
	wg.Wait()
	return len(batch)
}

func (w *DeliveryWorker) readyForRetry(id string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ready, scheduled := w.retryReady[id]
	if !scheduled {
		return true
	}
	return !now.Before(ready)
}

func (w *DeliveryWorker) scheduleRetry(id string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.retryReady[id] = at
}

func (w *DeliveryWorker) clearRetry(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.retryReady, id)
}

func (w *DeliveryWorker) deliverOne(ctx context.Context, n contracts.Notification, now time.Time) {
	channel, ok := w.channels[n.Channel]
	if !ok {
		w.fail(n, now, "no channel registered for "+string(n.Channel))
		return
	}

	sent, err := channel.Send(ctx, n)
	metrics.RecordNotificationDelivery(string(n.Channel), sent && err == nil)
	if sent && err == nil {
		w.clearRetry(n.ID)
		_ = n.Transition(contracts.NotificationSent)
		w.store.PutNotification(n)
		return
	}
	w.fail(n, now, errString(err))
}

func (w *DeliveryWorker) fail(n contracts.Notification, now time.Time, reason string) {
	n.Attempts++
	n.LastError = reason
	if n.Attempts >= maxAttemptsOrDefault(n.MaxAttempts) {
		_ = n.Transition(contracts.NotificationFailed)
		w.clearRetry(n.ID)
		w.store.PutNotification(n)
		w.log.WithFields(logging.Fields{}.Operation("deliver_notification").ToLogrus()).
			Warnf("notification %s exhausted retries: %s", n.ID, reason)
		return
	}
	_ = n.Transition(contracts.NotificationFailed)
	_ = n.Transition(contracts.NotificationPending)
	w.scheduleRetry(n.ID, now.Add(retryDelay(n.Attempts-1)))
	w.store.PutNotification(n)
}

func maxAttemptsOrDefault(max int) int {
	if max <= 0 {
		return defaultMaxRetries
	}
	return max
}

func errString(err error) string {
	if err == nil {
		return "delivery reported failure without an error"
	}
	return err.Error()
}
