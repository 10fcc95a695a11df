package alerting_test

import (
	"strings"
	"testing"
	"time"

	"github.com/qualitymesh/aat-core/pkg/alerting"
	"github.com/qualitymesh/aat-core/pkg/contracts"
)

func TestTemplateSetResolvesChannelThenTypeThenDefault(t *testing.T) {
	ts := alerting.NewTemplateSet()
	ts.RegisterForType("TEST_FAILURE", "type body")
	ts.Register("TEST_FAILURE", contracts.ChannelSlack, "channel body")

	if got := ts.Resolve("TEST_FAILURE", contracts.ChannelSlack); got != "channel body" {
		t.Fatalf("expected exact channel match, got %q", got)
	}
	if got := ts.Resolve("TEST_FAILURE", contracts.ChannelEmail); got != "type body" {
		t.Fatalf("expected alert-type fallback, got %q", got)
	}
	if got := ts.Resolve("UNKNOWN_TYPE", contracts.ChannelEmail); !strings.Contains(got, "{title}") {
		t.Fatalf("expected built-in default template, got %q", got)
	}
}

func TestRenderSubstitutesKnownVariables(t *testing.T) {
	alert := contracts.Alert{
		ID:       "alert-1",
		RuleName: "high-latency",
		Severity: contracts.SeverityWarning,
		Message:  "latency exceeded threshold",
		SourceID: "svcA",
		FiredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Labels:   map[string]string{"scenario_id": "s1"},
	}

	body := "[{priority}] {title}: {message} ({details.scenario_id}) from {source_service} at {created_at}"
	rendered := alerting.Render(body, alert, "TEST_FAILURE", nil)

	if !strings.Contains(rendered, "[WARNING]") {
		t.Fatalf("expected priority substitution, got %q", rendered)
	}
	if !strings.Contains(rendered, "high-latency") {
		t.Fatalf("expected title substitution, got %q", rendered)
	}
	if !strings.Contains(rendered, "s1") {
		t.Fatalf("expected details.* substitution, got %q", rendered)
	}
	if !strings.Contains(rendered, "svcA") {
		t.Fatalf("expected source_service substitution, got %q", rendered)
	}
	if !strings.Contains(rendered, "2026-01-02T03:04:05Z") {
		t.Fatalf("expected created_at substitution, got %q", rendered)
	}
}

func TestRenderMissingVariableIsEmptyString(t *testing.T) {
	alert := contracts.Alert{ID: "alert-2", FiredAt: time.Now()}
	body := "value={current_values.p99_ms} end"

	rendered := alerting.Render(body, alert, "TEST_FAILURE", nil)

	if rendered != "value= end" {
		t.Fatalf("expected missing current_values.* to render as empty string, got %q", rendered)
	}
}

func TestRenderNeverPanicsOnUnterminatedBrace(t *testing.T) {
	alert := contracts.Alert{ID: "alert-3", FiredAt: time.Now()}
	rendered := alerting.Render("broken {unterminated", alert, "TEST_FAILURE", nil)
	if !strings.HasPrefix(rendered, "broken ") {
		t.Fatalf("expected literal tail to be preserved, got %q", rendered)
	}
}
