package apitester_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualitymesh/aat-core/pkg/apitester"
	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/health"
)

func newTestServer(t *testing.T, maxLoadUsers int) *apitester.Server {
	t.Helper()
	healthAgg := health.NewAggregator("api-tester", "test", nil, 0, nil)
	return apitester.NewServer(apitester.NewExecutor(0, nil), maxLoadUsers, healthAgg, nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServerTestEndpointReturnsResult(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer target.Close()

	srv := newTestServer(t, 0)
	rec := postJSON(t, srv.Router(), "/test", apitester.TestRequest{
		Spec: &contracts.APITestSpec{
			Endpoint:                target.URL + "/health",
			Method:                  "GET",
			ExpectedStatus:          200,
			ResponseTimeThresholdMs: 5000,
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result contracts.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.Score)
	require.NotNil(t, result.APIResult)
	assert.Equal(t, 200, result.APIResult.ActualStatus)
	assert.True(t, result.APIResult.StatusValid)
	assert.NotEmpty(t, result.ExecutionID)
}

func TestServerTestFailureIsStillHTTP200(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	srv := newTestServer(t, 0)
	rec := postJSON(t, srv.Router(), "/test", apitester.TestRequest{
		Spec: &contracts.APITestSpec{
			Endpoint:       target.URL + "/boom",
			Method:         "GET",
			ExpectedStatus: 200,
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result contracts.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Passed)
}

func TestServerTestRejectsInvalidSpecWith422(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := postJSON(t, srv.Router(), "/test", apitester.TestRequest{
		Spec: &contracts.APITestSpec{Endpoint: "", Method: "GET", ExpectedStatus: 200},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = postJSON(t, srv.Router(), "/test", apitester.TestRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServerLoadTestEnforcesUserCap(t *testing.T) {
	srv := newTestServer(t, 2)
	rec := postJSON(t, srv.Router(), "/test/load", apitester.LoadTestRequest{
		Spec: &contracts.APITestSpec{
			Endpoint:       "http://localhost:1/x",
			Method:         "GET",
			ExpectedStatus: 200,
		},
		ConcurrentUsers: 5,
		DurationSeconds: 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServerLoadTestRunsAndAggregates(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	srv := newTestServer(t, 0)
	rec := postJSON(t, srv.Router(), "/test/load", apitester.LoadTestRequest{
		Spec: &contracts.APITestSpec{
			Endpoint:       target.URL + "/load",
			Method:         "GET",
			ExpectedStatus: 200,
		},
		ConcurrentUsers: 2,
		DurationSeconds: 1,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var stats contracts.LoadTestStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Greater(t, stats.TotalRequests, 0)
	assert.Equal(t, stats.TotalRequests, stats.SuccessfulRequests)
}

func TestServerResultsHistoryServesExecutedTests(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	srv := newTestServer(t, 0)
	router := srv.Router()
	postJSON(t, router, "/test", apitester.TestRequest{
		Spec: &contracts.APITestSpec{Endpoint: target.URL, Method: "GET", ExpectedStatus: 200},
	})

	req := httptest.NewRequest(http.MethodGet, "/results", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var results []contracts.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, contracts.TestTypeAPI, results[0].TestType)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results?since=not-a-time", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServerHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "api-tester", resp.ServiceName)
	assert.Equal(t, health.StatusHealthy, resp.Status)
}
