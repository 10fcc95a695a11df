package qualityjudge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// CacheKey computes the content-addressed key used to memoize an
// assessment: sha256(input_prompt, ai_output, sorted(metrics), strategy).
func CacheKey(inputPrompt, aiOutput string, metrics []contracts.QualityMetric, strategy contracts.JudgeStrategy) string {
	sorted := make([]string, len(metrics))
	for i, m := range metrics {
		sorted[i] = string(m)
	}
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(inputPrompt))
	h.Write([]byte{0})
	h.Write([]byte(aiOutput))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strategy))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache stores QualityAssessmentResult values keyed by CacheKey, with a
// per-entry TTL. A fallback result (overall confidence below
// minConfidence) is never stored.
type Cache struct {
	redis         *redis.Client
	mem           sync.Map
	ttl           time.Duration
	minConfidence float64
}

// NewCache builds a Cache. If client is nil, the cache runs purely
// in-memory (a process-local fallback for environments with no Redis
// configured).
func NewCache(client *redis.Client, ttl time.Duration, minConfidence float64) *Cache {
	return &Cache{redis: client, ttl: ttl, minConfidence: minConfidence}
}

type cacheEntry struct {
	Result    contracts.QualityAssessmentResult `json:"result"`
	ExpiresAt time.Time                         `json:"expires_at"`
}

// Get returns the cached result for key, if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) (*contracts.QualityAssessmentResult, bool) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheRedisKey(key)).Bytes()
		if err == nil {
			var entry cacheEntry
			if jsonErr := json.Unmarshal(data, &entry); jsonErr == nil {
				result := entry.Result
				result.CacheHit = true
				return &result, true
			}
		}
	}

	v, ok := c.mem.Load(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.ExpiresAt) {
		c.mem.Delete(key)
		return nil, false
	}
	result := entry.Result
	result.CacheHit = true
	return &result, true
}

// Put stores result under key, unless result's overall confidence is
// below the configured minimum — a fallback result is never cached.
func (c *Cache) Put(ctx context.Context, key string, result contracts.QualityAssessmentResult) {
	if overallConfidence(result) < c.minConfidence {
		return
	}

	entry := cacheEntry{Result: result, ExpiresAt: time.Now().Add(c.ttl)}

	if c.redis != nil {
		if data, err := json.Marshal(entry); err == nil {
			_ = c.redis.Set(ctx, cacheRedisKey(key), data, c.ttl).Err()
			return
		}
	}
	c.mem.Store(key, entry)
}

func overallConfidence(result contracts.QualityAssessmentResult) float64 {
	if len(result.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range result.Scores {
		sum += s.Confidence
	}
	return sum / float64(len(result.Scores))
}

func cacheRedisKey(key string) string {
	return "aat:qualityjudge:cache:" + key
}
