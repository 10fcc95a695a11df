package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// ExecutorSource names one executor whose result history the collector
// polls as the pull fallback to event-bus ingestion.
type ExecutorSource struct {
	Name    string `json:"name" yaml:"name"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// Collector fans out GET {base_url}/results?since=... to every configured
// executor and ingests whatever each returns into the window. Push via
// the event bus remains the primary path; the collector only fills gaps
// (an executor that ran work outside any orchestrated session, or
// results published while the aggregator was down).
type Collector struct {
	client  *http.Client
	sources []ExecutorSource
	window  *Window
	log     *logrus.Entry
}

// NewCollector builds a Collector polling sources into window.
func NewCollector(client *http.Client, sources []ExecutorSource, window *Window, log *logrus.Logger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		client:  client,
		sources: sources,
		window:  window,
		log:     log.WithFields(logging.Fields{}.Component("aggregator").Operation("collect").ToLogrus()),
	}
}

// Collect polls every source for results recorded since 'since' and
// ingests them. One unreachable executor does not abort the fan-out; its
// failure is logged and the remaining sources are still polled. The
// returned error is non-nil only when every source failed.
func (c *Collector) Collect(ctx context.Context, since time.Time) (int, error) {
	if len(c.sources) == 0 {
		return 0, nil
	}

	collected, failures := 0, 0
	var lastErr error
	for _, src := range c.sources {
		results, err := c.fetch(ctx, src, since)
		if err != nil {
			failures++
			lastErr = err
			c.log.WithFields(logging.Fields{}.Custom("source", src.Name).Error(err).ToLogrus()).
				Warn("executor history poll failed")
			continue
		}
		for _, r := range results {
			c.window.Ingest(r)
			collected++
		}
	}

	if failures == len(c.sources) {
		return collected, sharederrors.NetworkError("poll executor history", "all sources", lastErr)
	}
	return collected, nil
}

// RunForever polls every source on interval until ctx is cancelled,
// using the previous tick's collection time as the next tick's 'since'
// so each result is fetched once.
func (c *Collector) RunForever(ctx context.Context, interval time.Duration) {
	since := time.Now().Add(-interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := time.Now()
			n, err := c.Collect(ctx, since)
			if err != nil {
				continue
			}
			since = next
			if n > 0 {
				c.log.WithFields(logging.Fields{}.Custom("collected", n).ToLogrus()).Debug("pulled executor history")
			}
		}
	}
}

func (c *Collector) fetch(ctx context.Context, src ExecutorSource, since time.Time) ([]contracts.TestResult, error) {
	url := fmt.Sprintf("%s/results?since=%s", src.BaseURL, since.UTC().Format(time.RFC3339))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d", src.Name, resp.StatusCode)
	}
	var results []contracts.TestResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, sharederrors.ParseError(src.Name, "json", err)
	}
	return results, nil
}
