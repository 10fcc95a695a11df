package alerting

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

const retentionWindow = 7 * 24 * time.Hour

// CleanupWorker runs hourly, dropping Alerts older than 7 days and
// terminal (SENT/FAILED) Notifications older than 7 days.
type CleanupWorker struct {
	store *Store
	log   *logrus.Entry
	now   func() time.Time
}

// NewCleanupWorker builds a CleanupWorker over store.
func NewCleanupWorker(store *Store, log *logrus.Logger) *CleanupWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CleanupWorker{
		store: store,
		log:   log.WithFields(logging.Fields{}.Component("alerting.cleanup").ToLogrus()),
		now:   time.Now,
	}
}

// Run performs one cleanup pass, returning the number of alerts and
// notifications dropped.
func (w *CleanupWorker) Run() (alertsDropped, notificationsDropped int) {
	cutoff := w.now().Add(-retentionWindow)
	alertsDropped, notificationsDropped = w.store.CleanupOlderThan(cutoff)
	if alertsDropped > 0 || notificationsDropped > 0 {
		w.log.Infof("cleanup dropped %d alerts and %d notifications older than %s", alertsDropped, notificationsDropped, retentionWindow)
	}
	return alertsDropped, notificationsDropped
}

// RunForever ticks Run once per hour until stop is closed.
func (w *CleanupWorker) RunForever(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Run()
		}
	}
}
