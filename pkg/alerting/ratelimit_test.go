package alerting_test

import (
	"context"
	"testing"
	"time"

	"github.com/qualitymesh/aat-core/pkg/alerting"
)

func TestRateLimiterEnforcesCooldown(t *testing.T) {
	rl := alerting.NewRateLimiter(nil)
	ctx := context.Background()
	now := time.Now()

	if !rl.Admit(ctx, "rule-a", time.Minute, 10, now) {
		t.Fatal("expected first admission to succeed")
	}
	rl.Record(ctx, "rule-a", now)

	if rl.Admit(ctx, "rule-a", time.Minute, 10, now.Add(30*time.Second)) {
		t.Fatal("expected admission to be denied within the cooldown window")
	}
	if !rl.Admit(ctx, "rule-a", time.Minute, 10, now.Add(2*time.Minute)) {
		t.Fatal("expected admission to succeed after the cooldown elapses")
	}
}

func TestRateLimiterEnforcesHourlyCap(t *testing.T) {
	rl := alerting.NewRateLimiter(nil)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		at := now.Add(time.Duration(i) * time.Millisecond)
		if !rl.Admit(ctx, "rule-b", 0, 3, at) {
			t.Fatalf("expected admission %d to succeed under the hourly cap", i)
		}
		rl.Record(ctx, "rule-b", at)
	}
	if rl.Admit(ctx, "rule-b", 0, 3, now.Add(10*time.Millisecond)) {
		t.Fatal("expected the fourth admission to be denied once the hourly cap is reached")
	}
}

func TestRateLimiterIndependentPerRule(t *testing.T) {
	rl := alerting.NewRateLimiter(nil)
	ctx := context.Background()
	now := time.Now()

	rl.Record(ctx, "rule-a", now)
	if !rl.Admit(ctx, "rule-c", time.Hour, 10, now) {
		t.Fatal("expected a different rule's rate limit state to be independent")
	}
}
