// Package eventbus implements the in-process publish/subscribe backbone
// that lets the orchestrator, the aggregator and the alert engine observe
// executor and session lifecycle events without importing one another.
package eventbus

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Topic names one event stream. Components subscribe by topic string
// rather than by a closed enum so new producers can introduce topics
// without changing this package.
type Topic string

const (
	TopicScenarioCreated   Topic = "scenario.created"
	TopicExecutionStarted  Topic = "execution.started"
	TopicExecutionFinished Topic = "execution.finished"
	TopicResultRecorded    Topic = "result.recorded"
	TopicSessionStarted    Topic = "session.started"
	TopicSessionCompleted  Topic = "session.completed"
	TopicSessionCancelled  Topic = "session.cancelled"
	TopicPhaseStarted      Topic = "phase.started"
	TopicPhaseCompleted    Topic = "phase.completed"
	TopicAlertFired        Topic = "alert.fired"
	TopicAlertResolved     Topic = "alert.resolved"
)

// Event is one message published on a Topic. Payload is left as
// interface{} so every producer can publish its own contracts type
// without this package depending on pkg/contracts.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// Handler receives events published to a topic it subscribed to. Handlers
// run synchronously, in subscription order, on the publishing goroutine;
// a handler that needs to do slow work should hand off to its own
// goroutine or worker pool rather than block Publish.
type Handler func(Event)

// Bus is a topic-keyed, in-process publish/subscribe registry. The zero
// value is not usable; construct with New.
type Bus struct {
	mu     sync.RWMutex
	log    *logrus.Entry
	subs   map[Topic][]Handler
}

// New constructs an empty Bus. log may be nil, in which case a
// logrus.StandardLogger entry is used.
func New(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{
		subs: make(map[Topic][]Handler),
		log:  log.WithFields(logging.Fields{}.Component("eventbus").ToLogrus()),
	}
}

// Subscribe registers handler to be called, in registration order relative
// to other handlers on the same topic, whenever an Event is published to
// topic. Returns an Unsubscribe func that removes this registration.
func (b *Bus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[topic] = append(b.subs[topic], handler)
	idx := len(b.subs[topic]) - 1

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		handlers := b.subs[topic]
		if idx >= len(handlers) {
			return
		}
		// Mark the slot nil rather than re-slicing, so indices recorded by
		// other still-pending Unsubscribe closures on the same topic stay
		// valid.
		handlers[idx] = nil
	}
}

// Publish delivers event to every handler currently subscribed to
// event.Topic, in subscription order. A handler that panics is recovered
// and logged so one bad subscriber cannot take down the publisher or
// starve handlers registered after it.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[event.Topic]))
	copy(handlers, b.subs[event.Topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		b.dispatch(h, event)
	}
}

func (b *Bus) dispatch(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logging.Fields{}.Custom("topic", event.Topic).Custom("panic", r).ToLogrus()).
				Error("event handler panicked")
		}
	}()
	h(event)
}

// SubscriberCount returns how many live (non-unsubscribed) handlers are
// registered on topic. Exposed for tests and for health diagnostics.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, h := range b.subs[topic] {
		if h != nil {
			count++
		}
	}
	return count
}
