package alerting

import (
	"sort"
	"sync"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// Store holds Alerts and Notifications in memory, guarded by a single
// mutex. It plays the role the orchestrator/aggregator's Window plays
// for test results: a thread-safe, copy-on-read collection. It has no
// size cap; entries leave it only through CleanupOlderThan.
type Store struct {
	mu            sync.RWMutex
	alerts        map[string]*contracts.Alert
	notifications map[string]*contracts.Notification
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{
		alerts:        make(map[string]*contracts.Alert),
		notifications: make(map[string]*contracts.Notification),
	}
}

func (s *Store) PutAlert(alert contracts.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = &alert
}

func (s *Store) GetAlert(id string) (contracts.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return contracts.Alert{}, false
	}
	return *a, true
}

func (s *Store) PutNotification(n contracts.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = &n
}

func (s *Store) GetNotification(id string) (contracts.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return contracts.Notification{}, false
	}
	return *n, true
}

// PendingNotifications returns every Notification in PENDING state,
// sorted by CreatedAt ascending, capped at limit (0 means unlimited).
func (s *Store) PendingNotifications(limit int) []contracts.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []contracts.Notification
	for _, n := range s.notifications {
		if n.State == contracts.NotificationPending {
			pending = append(pending, *n)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// ActiveAlerts returns every Alert not yet RESOLVED, sorted by FiredAt
// descending (newest first).
func (s *Store) ActiveAlerts() []contracts.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []contracts.Alert
	for _, a := range s.alerts {
		if a.State != contracts.AlertResolved {
			active = append(active, *a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].FiredAt.After(active[j].FiredAt) })
	return active
}

// UpdateAlert applies fn to the stored alert under the write lock,
// returning the updated copy. The delivery/state-machine methods on
// contracts.Alert (Transition) run inside fn so concurrent acknowledge
// and resolve requests serialize on the same mutex.
func (s *Store) UpdateAlert(id string, fn func(*contracts.Alert) error) (contracts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return contracts.Alert{}, sharederrors.ValidationError("alert_id", "no alert with id "+id)
	}
	if err := fn(a); err != nil {
		return contracts.Alert{}, err
	}
	return *a, nil
}

// CleanupOlderThan drops Alerts whose FiredAt predates cutoff, and
// terminal (SENT/FAILED) Notifications whose CreatedAt predates cutoff.
// Returns the number of records dropped from each collection.
func (s *Store) CleanupOlderThan(cutoff time.Time) (alertsDropped, notificationsDropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.alerts {
		if a.FiredAt.Before(cutoff) {
			delete(s.alerts, id)
			alertsDropped++
		}
	}
	for id, n := range s.notifications {
		if n.State == contracts.NotificationPending {
			continue
		}
		if n.CreatedAt.Before(cutoff) {
			delete(s.notifications, id)
			notificationsDropped++
		}
	}
	return alertsDropped, notificationsDropped
}

// Len reports the current number of stored alerts and notifications.
func (s *Store) Len() (alerts, notifications int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts), len(s.notifications)
}
