package alerting

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter enforces a Rule's cooldown and hourly firing cap. State is
// kept in Redis when a client is configured so multiple alert-engine
// replicas share one limit; otherwise it falls back to an in-process map,
// matching the quality judge's cache fallback discipline.
type RateLimiter struct {
	redis *redis.Client
	mu    sync.Mutex
	last  map[string]time.Time
	hour  map[string]*hourlyCounter
}

type hourlyCounter struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter builds a RateLimiter. client may be nil.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis: client,
		last:  make(map[string]time.Time),
		hour:  make(map[string]*hourlyCounter),
	}
}

// Admit reports whether rule is allowed to fire again right now, given
// cooldown since its last trigger and its hourly cap. It does not record
// the trigger — call Record once the Alert has actually been synthesised.
func (rl *RateLimiter) Admit(ctx context.Context, ruleName string, cooldown time.Duration, hourlyCap int, now time.Time) bool {
	if rl.redis != nil {
		return rl.admitRedis(ctx, ruleName, cooldown, hourlyCap, now)
	}
	return rl.admitMemory(ruleName, cooldown, hourlyCap, now)
}

// Record marks ruleName as having fired at now, advancing both the
// cooldown clock and the hourly counter.
func (rl *RateLimiter) Record(ctx context.Context, ruleName string, now time.Time) {
	if rl.redis != nil {
		rl.recordRedis(ctx, ruleName, now)
		return
	}
	rl.recordMemory(ruleName, now)
}

func (rl *RateLimiter) admitMemory(ruleName string, cooldown time.Duration, hourlyCap int, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if last, ok := rl.last[ruleName]; ok && now.Sub(last) < cooldown {
		return false
	}
	counter := rl.hour[ruleName]
	if counter != nil && now.Sub(counter.windowStart) < time.Hour && counter.count >= hourlyCap {
		return false
	}
	return true
}

func (rl *RateLimiter) recordMemory(ruleName string, now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.last[ruleName] = now
	counter := rl.hour[ruleName]
	if counter == nil || now.Sub(counter.windowStart) >= time.Hour {
		rl.hour[ruleName] = &hourlyCounter{windowStart: now, count: 1}
		return
	}
	counter.count++
}

func (rl *RateLimiter) admitRedis(ctx context.Context, ruleName string, cooldown time.Duration, hourlyCap int, now time.Time) bool {
	lastStr, err := rl.redis.Get(ctx, cooldownKey(ruleName)).Result()
	if err == nil {
		if lastUnix, convErr := strconv.ParseInt(lastStr, 10, 64); convErr == nil {
			if now.Sub(time.Unix(lastUnix, 0)) < cooldown {
				return false
			}
		}
	}
	countStr, err := rl.redis.Get(ctx, hourlyKey(ruleName, now)).Result()
	if err == nil {
		if count, convErr := strconv.Atoi(countStr); convErr == nil && count >= hourlyCap {
			return false
		}
	}
	return true
}

func (rl *RateLimiter) recordRedis(ctx context.Context, ruleName string, now time.Time) {
	rl.redis.Set(ctx, cooldownKey(ruleName), strconv.FormatInt(now.Unix(), 10), 24*time.Hour)
	key := hourlyKey(ruleName, now)
	count, err := rl.redis.Incr(ctx, key).Result()
	if err == nil && count == 1 {
		rl.redis.Expire(ctx, key, time.Hour)
	}
}

func cooldownKey(ruleName string) string {
	return "aat:alerting:cooldown:" + ruleName
}

// hourlyKey buckets the counter by the wall-clock hour so the key expires
// naturally without needing a sliding window.
func hourlyKey(ruleName string, now time.Time) string {
	return "aat:alerting:hourly:" + ruleName + ":" + now.UTC().Format("2006010215")
}
