package browsertester_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	"github.com/qualitymesh/aat-core/pkg/browsertester"
	"github.com/qualitymesh/aat-core/pkg/contracts"
)

var (
	_ browsertester.Page              = (*fakePage)(nil)
	_ browsertester.ResponsiveAuditor = (*fakeResponsivePage)(nil)
)

// fakePage is a deterministic Page used by the browsertester test suite
// in place of a real CDP/WebDriver session.
type fakePage struct {
	navigateErr error
	performErr  map[string]error
	assertions  map[string]bool
	screenshot  []byte
	perf        map[string]float64
	closed      bool
}

func newFakePage() *fakePage {
	return &fakePage{
		performErr: make(map[string]error),
		assertions: make(map[string]bool),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.navigateErr
}

func (p *fakePage) Perform(ctx context.Context, action contracts.Action) error {
	if err, ok := p.performErr[action.Selector]; ok {
		return err
	}
	return nil
}

func (p *fakePage) Check(ctx context.Context, assertion contracts.Assertion) (bool, string, error) {
	if ok, found := p.assertions[assertion.Selector+string(assertion.Type)]; found {
		if ok {
			return true, "", nil
		}
		return false, "expected condition not met", nil
	}
	return true, "", nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.screenshot != nil {
		return p.screenshot, nil
	}
	return []byte{}, nil
}

func (p *fakePage) AccessibilityAudit(ctx context.Context, standards []string) ([]contracts.AccessibilityIssue, error) {
	return nil, nil
}

func (p *fakePage) PerformanceMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		if v, ok := p.perf[n]; ok {
			out[n] = v
		} else {
			out[n] = 0
		}
	}
	return out, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

var errNavigate = errors.New("navigation failed")

// fakeResponsivePage adds the ResponsiveAuditor capability on top of
// fakePage, returning the same check map for every viewport.
type fakeResponsivePage struct {
	*fakePage
	layout map[string]bool
}

func (p *fakeResponsivePage) LayoutChecks(ctx context.Context, viewport contracts.ViewportSize) (map[string]bool, error) {
	return p.layout, nil
}

// uniformPNG encodes a small single-color PNG for visual-diff tests.
func uniformPNG(gray uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
