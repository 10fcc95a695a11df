package apitester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

func TestExecuteHealthProbePass(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:                "/health",
		Method:                  "GET",
		ExpectedStatus:          200,
		ResponseTimeThresholdMs: 1000,
	}

	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{})

	require.NotNil(t, result.APIResult)
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, 200, result.APIResult.ActualStatus)
	assert.True(t, result.APIResult.StatusValid)
	assert.True(t, result.APIResult.SchemaValid)
	assert.True(t, result.APIResult.HeadersValid)
	assert.True(t, result.APIResult.ContentValid)
}

func TestExecuteThresholdBreach(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:                "/health",
		Method:                  "GET",
		ExpectedStatus:          200,
		ResponseTimeThresholdMs: 1,
	}

	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{})

	assert.False(t, result.Passed)
	assert.True(t, result.APIResult.StatusValid)
	assert.Less(t, result.Score, 1.0)
	assert.NotEmpty(t, result.FailureReasons)
}

func TestExecuteSchemaMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"x"}`))
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:       "/widgets",
		Method:         "GET",
		ExpectedStatus: 200,
		ExpectedResponseSchema: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"id"},
		},
	}

	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{})

	assert.False(t, result.Passed)
	require.NotNil(t, result.APIResult)
	assert.True(t, result.APIResult.StatusValid)
	assert.False(t, result.APIResult.SchemaValid)
}

func TestExecutePathAndQueryParams(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:       "/v1/widgets/{id}",
		Method:         "GET",
		ExpectedStatus: 200,
		PathParams:     contracts.PathParams{"id": "42"},
		QueryParams:    map[string]string{"verbose": "true"},
	}

	exec.Execute(context.Background(), server.URL, spec, RunOptions{})

	assert.Equal(t, "/v1/widgets/42", gotPath)
	assert.Equal(t, "verbose=true", gotQuery)
}

func TestRunLoadTestAggregation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	stats := exec.RunLoadTest(context.Background(), LoadTestSpec{
		ConcurrentUsers: 4,
		DurationSeconds: 1,
		BaseURL:         server.URL,
		Spec: &contracts.APITestSpec{
			Endpoint:       "/ping",
			Method:         "GET",
			ExpectedStatus: 200,
		},
	})

	assert.Greater(t, stats.TotalRequests, 0)
	assert.Equal(t, stats.TotalRequests, stats.SuccessfulRequests)
	assert.GreaterOrEqual(t, stats.P95LatencyMs, stats.P50LatencyMs)
}

func TestExecuteHeadersAndContentValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "abc-123")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:             "/health",
		Method:               "GET",
		ExpectedStatus:       200,
		ExpectedHeaders:      map[string]string{"X-Request-Id": "", "Content-Type": "json"},
		ExpectedBodyContains: []string{`"status"`, "ok"},
	}

	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{})
	require.NotNil(t, result.APIResult)
	assert.True(t, result.APIResult.HeadersValid)
	assert.True(t, result.APIResult.ContentValid)
	assert.True(t, result.Passed)

	spec.ExpectedHeaders = map[string]string{"X-Missing": ""}
	spec.ExpectedBodyContains = []string{"absent-token"}
	result = exec.Execute(context.Background(), server.URL, spec, RunOptions{})
	assert.False(t, result.APIResult.HeadersValid)
	assert.False(t, result.APIResult.ContentValid)
	assert.False(t, result.Passed)
	// Status still validated independently of the failed checks.
	assert.True(t, result.APIResult.StatusValid)
	assert.InDelta(t, 3.0/5.0, result.Score, 1e-9)
}

func TestExecuteTimeoutReportsErrorTypeAndPinnedDuration(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	exec := NewExecutor(0, nil)
	spec := &contracts.APITestSpec{
		Endpoint:       "/slow",
		Method:         "GET",
		ExpectedStatus: 200,
	}

	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{TimeoutSeconds: 1})

	assert.False(t, result.Passed)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, contracts.ErrorTypeTimeout, result.ErrorType)
	assert.Equal(t, time.Second, result.Duration)
}

func TestExecuteRetriesPerScenarioBudgetWithSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // immediately unreachable: every attempt errors as connection refused

	exec := NewExecutor(5, nil)
	spec := &contracts.APITestSpec{
		Endpoint:          "/flaky",
		Method:            "GET",
		ExpectedStatus:    200,
		RetryDelaySeconds: 0.05,
	}

	// retry_count=2 means three attempts, spaced 0.05×1 then 0.05×2
	// seconds: the run must take at least 150ms in total.
	start := time.Now()
	result := exec.Execute(context.Background(), server.URL, spec, RunOptions{RetryCount: 2})
	elapsed := time.Since(start)

	assert.False(t, result.Passed)
	assert.Equal(t, contracts.ErrorTypeNetwork, result.ErrorType)
	assert.GreaterOrEqual(t, elapsed, 140*time.Millisecond)

	// The service-level cap bounds the scenario's budget: with a cap of
	// zero retries the same run returns without any retry delay.
	capped := NewExecutor(0, nil)
	start = time.Now()
	capped.Execute(context.Background(), server.URL, spec, RunOptions{RetryCount: 2})
	assert.Less(t, time.Since(start), 40*time.Millisecond)
}
