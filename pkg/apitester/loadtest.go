package apitester

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/shared/mathstat"
)

// LoadTestSpec parametrises a concurrent load test run: concurrent_users
// virtual users each issuing spec requests back-to-back for
// duration_seconds.
type LoadTestSpec struct {
	ConcurrentUsers int
	DurationSeconds int
	Spec            *contracts.APITestSpec
	BaseURL         string
}

// RunLoadTest drives LoadTestSpec.ConcurrentUsers goroutines, each
// repeatedly issuing requests for the configured duration, and returns
// the aggregated LoadTestStats. Per §8 property 5, wall-clock per
// session is bounded by duration plus one in-flight request.
func (e *Executor) RunLoadTest(ctx context.Context, lt LoadTestSpec) *contracts.LoadTestStats {
	deadline := time.Now().Add(time.Duration(lt.DurationSeconds) * time.Second)

	var mu sync.Mutex
	var latenciesMs []float64
	total, successful := 0, 0

	var wg sync.WaitGroup
	for u := 0; u < lt.ConcurrentUsers; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				start := time.Now()
				detail, err := e.attempt(ctx, lt.BaseURL, lt.Spec)
				elapsed := time.Since(start)

				mu.Lock()
				total++
				latenciesMs = append(latenciesMs, float64(elapsed.Milliseconds()))
				if err == nil && detail.ActualStatus == lt.Spec.ExpectedStatus {
					successful++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sortedLatencies := append([]float64(nil), latenciesMs...)
	sort.Float64s(sortedLatencies)

	stats := &contracts.LoadTestStats{
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     total - successful,
	}
	if len(sortedLatencies) > 0 {
		stats.P50LatencyMs = mathstat.Percentile(sortedLatencies, 50)
		stats.P95LatencyMs = mathstat.Percentile(sortedLatencies, 95)
		stats.P99LatencyMs = mathstat.Percentile(sortedLatencies, 99)
	}
	if lt.DurationSeconds > 0 {
		stats.RequestsPerSecond = float64(total) / float64(lt.DurationSeconds)
	}
	return stats
}
