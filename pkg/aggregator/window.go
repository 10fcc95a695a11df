package aggregator

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Window holds a bounded in-memory sliding window of TestResults. Results
// arrive either through Ingest (direct call) or by subscribing to the
// event bus's result-recorded topic; both paths share the same eviction
// policy: drop the oldest entries once maxStored is exceeded, and drop
// entries older than maxAge on each Cleanup pass.
type Window struct {
	mu        sync.RWMutex
	results   []contracts.TestResult
	maxStored int
	maxAge    time.Duration
	log       *logrus.Entry
}

// NewWindow builds an empty Window bounded to maxStored entries, evicting
// anything older than maxAge on Cleanup.
func NewWindow(maxStored int, maxAge time.Duration, log *logrus.Logger) *Window {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Window{
		maxStored: maxStored,
		maxAge:    maxAge,
		log:       log.WithFields(logging.Fields{}.Component("aggregator").ToLogrus()),
	}
}

// Subscribe registers the window to ingest every TestResult published on
// the event bus's result-recorded topic.
func (w *Window) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	return bus.Subscribe(eventbus.TopicResultRecorded, func(event eventbus.Event) {
		result, ok := event.Payload.(*contracts.TestResult)
		if !ok {
			w.log.WithFields(logging.Fields{}.Custom("payload_type", event.Payload).ToLogrus()).
				Warn("result.recorded event carried an unexpected payload type")
			return
		}
		w.Ingest(*result)
	})
}

// Ingest records result in the window, evicting the oldest entry if the
// window is now over capacity.
func (w *Window) Ingest(result contracts.TestResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.results = append(w.results, result)
	if len(w.results) > w.maxStored {
		w.results = w.results[len(w.results)-w.maxStored:]
	}
}

// Cleanup drops every result older than maxAge, relative to now.
func (w *Window) Cleanup(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.maxAge)
	kept := w.results[:0:0]
	for _, r := range w.results {
		if r.RecordedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	dropped := len(w.results) - len(kept)
	w.results = kept
	return dropped
}

// Snapshot returns a copy of every result recorded within [start, end],
// sorted by RecordedAt ascending. Copy-on-read lets report generation run
// concurrently with ongoing ingestion without locking the window for the
// duration of a report.
func (w *Window) Snapshot(start, end time.Time) []contracts.TestResult {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]contracts.TestResult, 0, len(w.results))
	for _, r := range w.results {
		if !r.RecordedAt.Before(start) && !r.RecordedAt.After(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

// Len returns the current number of results held in the window.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.results)
}

// serviceName extracts the leading token of an execution ID, up to (not
// including) the first underscore, naming the owning service.
func serviceName(executionID string) string {
	if idx := strings.IndexByte(executionID, '_'); idx >= 0 {
		return executionID[:idx]
	}
	return executionID
}

// resultScore returns the scalar "how good was this result" value used
// by trend/anomaly analysis and the top-performers ranking: the
// executor-computed score when set, the quality judge's overall score
// as a fallback, else 1.0/0.0 for a bare pass/fail result ingested from
// an older producer.
func resultScore(r contracts.TestResult) float64 {
	if r.Score > 0 {
		return r.Score
	}
	if r.QualityResult != nil {
		return r.QualityResult.OverallScore
	}
	if r.Passed {
		return 1.0
	}
	return 0.0
}
