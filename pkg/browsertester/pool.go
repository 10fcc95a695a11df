// Package browsertester implements the browser tester (C4): a bounded
// pool of browser contexts, an action/assertion DSL executed against a
// page, and visual/accessibility/performance capture.
package browsertester

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
)

// Page is the narrow surface a browser context exposes to the executor.
// A real implementation backs this with a CDP/WebDriver session; tests
// and the reference executor use an in-memory fake.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Perform(ctx context.Context, action contracts.Action) error
	Check(ctx context.Context, assertion contracts.Assertion) (bool, string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	AccessibilityAudit(ctx context.Context, standards []string) ([]contracts.AccessibilityIssue, error)
	PerformanceMetrics(ctx context.Context, names []string) (map[string]float64, error)
	Close() error
}

// PageFactory constructs a fresh Page for the given browser/device/viewport
// combination. One factory instance is launched per browser type per
// service lifetime; the pool calls it once per acquired slot.
type PageFactory func(ctx context.Context, browser contracts.BrowserType, viewport contracts.ViewportSize) (Page, error)

// UnconfiguredFactory is the PageFactory used when no browser engine is
// bound to the service. Every Acquire fails with a configuration error,
// which the health check surfaces as unhealthy and the orchestrator
// treats as "refuse to schedule UI phases".
func UnconfiguredFactory(reason string) PageFactory {
	return func(ctx context.Context, browser contracts.BrowserType, viewport contracts.ViewportSize) (Page, error) {
		return nil, sharederrors.ConfigurationError("browser_automation.engine", reason)
	}
}

// ContextPool bounds concurrent browser contexts to maxConcurrent.
// Acquire fails fast with an explicit "limit reached" error when the cap
// is hit, rather than blocking indefinitely.
type ContextPool struct {
	sem     chan struct{}
	factory PageFactory
	log     *logrus.Entry

	mu     sync.Mutex
	active int
}

// NewContextPool builds a pool bounding concurrent contexts to
// maxConcurrent, using factory to create each Page.
func NewContextPool(maxConcurrent int, factory PageFactory, log *logrus.Logger) *ContextPool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ContextPool{
		sem:     make(chan struct{}, maxConcurrent),
		factory: factory,
		log:     log.WithFields(logging.Fields{}.Component("browsertester").ToLogrus()),
	}
}

// ErrPoolLimitReached is returned by Acquire when every slot is in use.
type ErrPoolLimitReached struct{}

func (e *ErrPoolLimitReached) Error() string { return "browser context pool: limit reached" }

// Acquire reserves a slot and constructs a Page for it. If the pool is
// already at capacity, it returns ErrPoolLimitReached immediately rather
// than blocking; callers (the orchestrator) are expected to retry with
// back-off.
func (p *ContextPool) Acquire(ctx context.Context, browser contracts.BrowserType, viewport contracts.ViewportSize) (Page, func(), error) {
	select {
	case p.sem <- struct{}{}:
	default:
		return nil, nil, sharederrors.Retryable(&ErrPoolLimitReached{})
	}

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	page, err := p.factory(ctx, browser, viewport)
	if err != nil {
		<-p.sem
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		return nil, nil, sharederrors.FailedToWithDetails("create browser context", "browsertester", string(browser), err)
	}

	release := func() {
		_ = page.Close()
		<-p.sem
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
	return page, release, nil
}

// ActiveCount reports how many contexts are currently checked out.
func (p *ContextPool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Capacity returns the pool's configured maximum concurrent contexts.
func (p *ContextPool) Capacity() int {
	return cap(p.sem)
}
