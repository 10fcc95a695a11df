// Package apitester implements the API tester (C3): issuing a single
// HTTP request against an APITestSpec, validating status/schema/response
// time, and driving concurrent load tests.
package apitester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
	"github.com/qualitymesh/aat-core/pkg/shared/httpclient"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Executor runs APITestSpec scenarios against a live HTTP target.
type Executor struct {
	client     *http.Client
	maxRetries int
	log        *logrus.Entry
}

// NewExecutor builds an Executor using httpclient.DefaultClientConfig.
// maxRetries is the service-level cap on any single scenario's
// retry_count; a scenario may ask for fewer retries but never more.
func NewExecutor(maxRetries int, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Executor{
		client:     httpclient.NewClient(httpclient.DefaultClientConfig()),
		maxRetries: maxRetries,
		log:        log.WithFields(logging.Fields{}.Component("apitester").ToLogrus()),
	}
}

// substitutePath replaces {name} placeholders in endpoint with the
// matching entry from params.
func substitutePath(endpoint string, params contracts.PathParams) string {
	out := endpoint
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func buildRequest(ctx context.Context, baseURL string, spec *contracts.APITestSpec) (*http.Request, error) {
	path := substitutePath(spec.Endpoint, spec.PathParams)
	url := baseURL + path
	if len(spec.QueryParams) > 0 {
		q := make([]string, 0, len(spec.QueryParams))
		for k, v := range spec.QueryParams {
			q = append(q, k+"="+v)
		}
		url += "?" + strings.Join(q, "&")
	}

	var body io.Reader
	if spec.RequestBody != nil {
		data, err := json.Marshal(spec.RequestBody)
		if err != nil {
			return nil, sharederrors.FailedToWithDetails("marshal request body", "apitester", spec.Endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(spec.Method), url, body)
	if err != nil {
		return nil, sharederrors.NetworkError("build request", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// RunOptions carries the scenario-level knobs that live outside the
// APITestSpec itself: how many retries this scenario allows, and the
// overall deadline for one run.
type RunOptions struct {
	// RetryCount is the scenario's retry budget, capped by the
	// service-level maximum the Executor was constructed with.
	RetryCount int
	// TimeoutSeconds bounds the whole run. Zero means the caller's ctx
	// is the only deadline.
	TimeoutSeconds int
}

// Execute runs a single APITestSpec, retrying transient failures per
// opts.RetryCount with attempts spaced by retry_delay_seconds ×
// attempt_index, and returns the populated TestResult. On a timeout the
// result reports error_type TIMEOUT with duration pinned to the
// configured timeout.
func (e *Executor) Execute(ctx context.Context, baseURL string, spec *contracts.APITestSpec, opts RunOptions) *contracts.TestResult {
	result := &contracts.TestResult{
		TestType:   contracts.TestTypeAPI,
		RecordedAt: time.Now(),
	}

	if opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	retries := opts.RetryCount
	if retries > e.maxRetries {
		retries = e.maxRetries
	}
	if retries < 0 {
		retries = 0
	}

	var detail *contracts.APIResultDetail
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		start := time.Now()
		detail, lastErr = e.attempt(ctx, baseURL, spec)
		elapsed := time.Since(start)

		if lastErr == nil {
			result.Duration = elapsed
			break
		}
		result.Duration = elapsed
		if !sharederrors.IsRetryable(lastErr) || attempt == retries {
			break
		}
		e.log.WithFields(logging.Fields{}.Custom("attempt", attempt+1).Error(lastErr).ToLogrus()).
			Warn("retrying transient api test failure")
		if !sleepRetryDelay(ctx, spec.RetryDelaySeconds, attempt+1) {
			break
		}
	}

	if lastErr != nil {
		result.Passed = false
		result.Score = 0
		result.FailureReasons = []string{lastErr.Error()}
		if isTimeout(lastErr) {
			result.ErrorType = contracts.ErrorTypeTimeout
			if opts.TimeoutSeconds > 0 {
				result.Duration = time.Duration(opts.TimeoutSeconds) * time.Second
			}
			result.FailureReasons = append(result.FailureReasons,
				"request did not complete within the configured timeout; consider raising timeout_seconds or investigating target latency")
		} else {
			result.ErrorType = contracts.ErrorTypeNetwork
		}
		return result
	}

	statusOK := detail.StatusValid
	schemaOK := detail.SchemaValid
	headersOK := detail.HeadersValid
	contentOK := detail.ContentValid
	performanceOK := spec.ResponseTimeThresholdMs <= 0 || detail.ResponseTimeMs <= int64(spec.ResponseTimeThresholdMs)

	result.APIResult = detail
	result.Passed = statusOK && schemaOK && headersOK && contentOK && performanceOK
	result.Score = checkScore(statusOK, schemaOK, headersOK, contentOK, performanceOK)
	result.PerformanceMetrics = map[string]float64{
		"response_time_ms": float64(detail.ResponseTimeMs),
	}

	if !statusOK {
		result.FailureReasons = append(result.FailureReasons, fmt.Sprintf(
			"expected status %d, got %d", spec.ExpectedStatus, detail.ActualStatus))
	}
	if !performanceOK {
		result.FailureReasons = append(result.FailureReasons, fmt.Sprintf(
			"response time %dms exceeded threshold %dms", detail.ResponseTimeMs, spec.ResponseTimeThresholdMs))
	}
	if !schemaOK {
		result.FailureReasons = append(result.FailureReasons, "response body did not match expected_response_schema")
	}
	if !headersOK {
		result.FailureReasons = append(result.FailureReasons, "response was missing one or more expected_headers")
	}
	if !contentOK {
		result.FailureReasons = append(result.FailureReasons, "response body did not contain expected_body_contains")
	}

	return result
}

// checkScore is the API tester's rubric: the fraction of its five
// independent checks (status, schema, headers, content, response time)
// that passed.
func checkScore(checks ...bool) float64 {
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

// sleepRetryDelay waits retryDelaySeconds × attemptIndex, honouring ctx
// cancellation. Returns false if ctx expired during the wait.
func sleepRetryDelay(ctx context.Context, retryDelaySeconds float64, attemptIndex int) bool {
	if retryDelaySeconds <= 0 {
		return ctx.Err() == nil
	}
	delay := time.Duration(retryDelaySeconds * float64(attemptIndex) * float64(time.Second))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// isTimeout reports whether err represents a deadline expiry rather than
// some other transport failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func (e *Executor) attempt(ctx context.Context, baseURL string, spec *contracts.APITestSpec) (*contracts.APIResultDetail, error) {
	req, err := buildRequest(ctx, baseURL, spec)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("execute request", req.URL.String(), err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sharederrors.NetworkError("read response body", req.URL.String(), err)
	}
	elapsed := time.Since(start)

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	var parsed interface{}
	_ = json.Unmarshal(bodyBytes, &parsed)

	// Schema validation applies only when a schema is configured and the
	// response isn't an error status; the other validations are
	// evaluated independently.
	schemaValid := true
	if spec.ExpectedResponseSchema != nil && resp.StatusCode < 400 {
		schemaValid = validateSchema(parsed, spec.ExpectedResponseSchema)
	}

	return &contracts.APIResultDetail{
		ActualStatus:    resp.StatusCode,
		ResponseTimeMs:  elapsed.Milliseconds(),
		ResponseBody:    parsed,
		ResponseHeaders: headers,
		StatusValid:     resp.StatusCode == spec.ExpectedStatus,
		SchemaValid:     schemaValid,
		HeadersValid:    validateHeaders(resp.Header, spec.ExpectedHeaders),
		ContentValid:    validateContent(bodyBytes, spec.ExpectedBodyContains),
		SecurityNotes:   securityAdvisories(resp),
	}, nil
}

// validateHeaders checks each expected header is present, and when a
// value is given, that the actual value contains it. No expectations
// means vacuously valid.
func validateHeaders(actual http.Header, expected map[string]string) bool {
	for name, want := range expected {
		got := actual.Get(name)
		if got == "" {
			return false
		}
		if want != "" && !strings.Contains(got, want) {
			return false
		}
	}
	return true
}

// validateContent checks the raw body contains every expected substring.
// No expectations means vacuously valid.
func validateContent(body []byte, expected []string) bool {
	text := string(body)
	for _, want := range expected {
		if !strings.Contains(text, want) {
			return false
		}
	}
	return true
}

// securityAdvisories flags common missing-header hardening gaps;
// advisory only, never fails a test on its own.
func securityAdvisories(resp *http.Response) []string {
	var notes []string
	if resp.Header.Get("Strict-Transport-Security") == "" && resp.Request != nil && resp.Request.URL.Scheme == "https" {
		notes = append(notes, "missing Strict-Transport-Security header")
	}
	if resp.Header.Get("X-Content-Type-Options") == "" {
		notes = append(notes, "missing X-Content-Type-Options header")
	}
	if resp.Header.Get("X-Frame-Options") == "" && resp.Header.Get("Content-Security-Policy") == "" {
		notes = append(notes, "missing clickjacking protection (X-Frame-Options or CSP frame-ancestors)")
	}
	return notes
}
