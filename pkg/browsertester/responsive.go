package browsertester

import (
	"context"

	"github.com/qualitymesh/aat-core/pkg/contracts"
)

// ResponsiveAuditor is the optional Page capability backing the
// responsive sub-suite: evaluate the layout checks (horizontal scroll,
// viewport meta, responsive-image ratio, touch-target size, fixed-width
// penalty, readable-text ratio) at the given viewport and report each
// check's pass/fail. Pages without this capability skip the sub-suite.
type ResponsiveAuditor interface {
	LayoutChecks(ctx context.Context, viewport contracts.ViewportSize) (map[string]bool, error)
}

// ViewportPreset is one entry of the responsive sub-suite's viewport
// matrix.
type ViewportPreset struct {
	Name string
	Size contracts.ViewportSize
}

// ResponsiveViewports is the preset matrix the sub-suite evaluates, in a
// fixed order so per-viewport results are deterministic.
var ResponsiveViewports = []ViewportPreset{
	{Name: "mobile_portrait", Size: contracts.ViewportSize{Width: 375, Height: 667}},
	{Name: "mobile_landscape", Size: contracts.ViewportSize{Width: 667, Height: 375}},
	{Name: "tablet", Size: contracts.ViewportSize{Width: 768, Height: 1024}},
	{Name: "desktop_small", Size: contracts.ViewportSize{Width: 1280, Height: 720}},
	{Name: "desktop_medium", Size: contracts.ViewportSize{Width: 1440, Height: 900}},
	{Name: "desktop_large", Size: contracts.ViewportSize{Width: 1920, Height: 1080}},
	{Name: "desktop_xl", Size: contracts.ViewportSize{Width: 2560, Height: 1440}},
}

// runResponsiveSuite evaluates every viewport preset against auditor,
// producing a per-viewport score (fraction of checks passed) and the
// aggregate mean. A viewport whose checks errored scores zero with an
// empty check map rather than aborting the suite.
func runResponsiveSuite(ctx context.Context, auditor ResponsiveAuditor) ([]contracts.ResponsiveViewportResult, float64) {
	results := make([]contracts.ResponsiveViewportResult, 0, len(ResponsiveViewports))
	var sum float64
	for _, preset := range ResponsiveViewports {
		entry := contracts.ResponsiveViewportResult{
			Viewport: preset.Name,
			Width:    preset.Size.Width,
			Height:   preset.Size.Height,
		}
		checks, err := auditor.LayoutChecks(ctx, preset.Size)
		if err == nil && len(checks) > 0 {
			entry.Checks = checks
			passed := 0
			for _, ok := range checks {
				if ok {
					passed++
				}
			}
			entry.Score = float64(passed) / float64(len(checks))
		}
		sum += entry.Score
		results = append(results, entry)
	}
	if len(results) == 0 {
		return nil, 0
	}
	return results, sum / float64(len(results))
}
