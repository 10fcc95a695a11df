package aggregator_test

import (
	"testing"
	"time"

	"github.com/qualitymesh/aat-core/pkg/aggregator"
	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/eventbus"
)

func result(executionID, scenarioID string, passed bool, recordedAt time.Time) contracts.TestResult {
	return contracts.TestResult{
		ExecutionID: executionID,
		ScenarioID:  scenarioID,
		TestType:    contracts.TestTypeAPI,
		Passed:      passed,
		Duration:    250 * time.Millisecond,
		RecordedAt:  recordedAt,
	}
}

func TestWindowIngestAndSnapshot(t *testing.T) {
	w := aggregator.NewWindow(100, 7*24*time.Hour, nil)
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	w.Ingest(result("svcA_1", "scenario-1", true, now))
	w.Ingest(result("svcA_2", "scenario-1", false, now.Add(time.Minute)))

	snap := w.Snapshot(now.Add(-time.Hour), now.Add(time.Hour))
	if len(snap) != 2 {
		t.Fatalf("expected 2 results in snapshot, got %d", len(snap))
	}
	if snap[0].ExecutionID != "svcA_1" {
		t.Fatalf("expected results ordered by RecordedAt ascending, got %+v", snap)
	}
}

func TestWindowEvictsOldestOverCapacity(t *testing.T) {
	w := aggregator.NewWindow(2, 7*24*time.Hour, nil)
	now := time.Now()

	w.Ingest(result("svcA_1", "s1", true, now))
	w.Ingest(result("svcA_2", "s1", true, now.Add(time.Second)))
	w.Ingest(result("svcA_3", "s1", true, now.Add(2*time.Second)))

	if w.Len() != 2 {
		t.Fatalf("expected window capped at 2, got %d", w.Len())
	}
	snap := w.Snapshot(now.Add(-time.Hour), now.Add(time.Hour))
	if snap[0].ExecutionID != "svcA_2" {
		t.Fatalf("expected oldest entry evicted, got %+v", snap)
	}
}

func TestWindowCleanupDropsOldEntries(t *testing.T) {
	w := aggregator.NewWindow(100, time.Hour, nil)
	now := time.Now()

	w.Ingest(result("svcA_1", "s1", true, now.Add(-2*time.Hour)))
	w.Ingest(result("svcA_2", "s1", true, now))

	dropped := w.Cleanup(now)
	if dropped != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", dropped)
	}
	if w.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", w.Len())
	}
}

func TestWindowSubscribeIngestsPublishedResults(t *testing.T) {
	bus := eventbus.New(nil)
	w := aggregator.NewWindow(100, 7*24*time.Hour, nil)
	w.Subscribe(bus)

	r := result("svcA_1", "s1", true, time.Now())
	bus.Publish(eventbus.Event{Topic: eventbus.TopicResultRecorded, Payload: &r})

	if w.Len() != 1 {
		t.Fatalf("expected the published result to be ingested, got %d results", w.Len())
	}
}
