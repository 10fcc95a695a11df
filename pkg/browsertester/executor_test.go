package browsertester_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/qualitymesh/aat-core/pkg/browsertester"
	"github.com/qualitymesh/aat-core/pkg/contracts"
)

var _ = Describe("Executor", func() {
	var spec *contracts.UITestSpec

	BeforeEach(func() {
		spec = &contracts.UITestSpec{
			PageURL:      "https://example.com/login",
			Browser:      contracts.BrowserChromium,
			ViewportSize: contracts.ViewportSize{Width: 1280, Height: 720},
			Actions: []contracts.Action{
				{Type: contracts.ActionTypeText, Selector: "#username", Value: "alice"},
				{Type: contracts.ActionClick, Selector: "#submit"},
			},
			Assertions: []contracts.Assertion{
				{Type: contracts.AssertURL, Selector: "", ExpectedValue: "dashboard"},
			},
		}
	})

	It("should pass when every action and assertion succeeds", func() {
		page := newFakePage()
		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		Expect(result.Passed).To(BeTrue())
		Expect(result.UIResult.ActionsExecuted).To(Equal(2))
		Expect(result.UIResult.AssertionsPassed).To(Equal(1))
		Expect(page.closed).To(BeTrue())
	})

	It("should fail the result when an assertion does not hold", func() {
		page := newFakePage()
		page.assertions["urlurl"] = false
		spec.Assertions = []contracts.Assertion{{Type: contracts.AssertURL, Selector: "url", ExpectedValue: "dashboard"}}

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		Expect(result.Passed).To(BeFalse())
		Expect(result.UIResult.AssertionsFailed).To(Equal(1))
		Expect(result.FailureReasons).ToNot(BeEmpty())
	})

	It("should fail fast when navigation itself errors", func() {
		page := newFakePage()
		page.navigateErr = errNavigate

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		Expect(result.Passed).To(BeFalse())
		Expect(result.FailureReasons).To(ContainElement(errNavigate.Error()))
	})

	It("should release the pool slot even when an action fails", func() {
		page := newFakePage()
		page.performErr["#submit"] = errNavigate

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		Expect(pool.ActiveCount()).To(Equal(0))
	})
})

var _ = Describe("Executor scoring", func() {
	newSpec := func() *contracts.UITestSpec {
		return &contracts.UITestSpec{
			PageURL:      "https://example.com/",
			Browser:      contracts.BrowserChromium,
			ViewportSize: contracts.ViewportSize{Width: 1280, Height: 720},
		}
	}

	It("should score a bare passing run as 1.0", func() {
		pool := browsertester.NewContextPool(1, factoryReturning(newFakePage()), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), newSpec(), browsertester.RunOptions{})

		Expect(result.Passed).To(BeTrue())
		Expect(result.Score).To(Equal(1.0))
	})

	It("should average the action and assertion success rates", func() {
		page := newFakePage()
		page.performErr["#broken"] = errNavigate
		page.assertions["#titletitle"] = false

		spec := newSpec()
		spec.Actions = []contracts.Action{
			{Type: contracts.ActionClick, Selector: "#ok"},
			{Type: contracts.ActionClick, Selector: "#broken"},
		}
		spec.Assertions = []contracts.Assertion{
			{Type: contracts.AssertTitle, Selector: "#title", ExpectedValue: "x"},
			{Type: contracts.AssertVisible, Selector: "#present"},
		}

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		// action rate 1/2, assertion rate 1/2 -> mean 0.5
		Expect(result.Score).To(BeNumerically("~", 0.5, 1e-9))
		Expect(result.Passed).To(BeFalse())
	})

	It("should include the load-time component when a threshold is configured", func() {
		page := newFakePage()
		page.perf = map[string]float64{"load_time_ms": 4000}

		spec := newSpec()
		spec.PerformanceMetrics = []string{"load_time_ms"}

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{
			PerformanceThresholds: map[string]float64{"load_time_ms": 3000},
		})

		// only component computed is the breached load-time check: 0.5
		Expect(result.Score).To(BeNumerically("~", 0.5, 1e-9))
		Expect(result.PerformanceMetrics).To(HaveKeyWithValue("load_time_ms", 4000.0))
	})
})

var _ = Describe("Executor visual regression", func() {
	newSpec := func() *contracts.UITestSpec {
		return &contracts.UITestSpec{
			PageURL:              "https://example.com/dashboard",
			Browser:              contracts.BrowserChromium,
			ViewportSize:         contracts.ViewportSize{Width: 1280, Height: 720},
			ScreenshotComparison: true,
			VisualThreshold:      0.1,
		}
	}

	It("should adopt the first capture as baseline and diff later runs", func() {
		page := newFakePage()
		page.screenshot = uniformPNG(100)

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		first := exec.Execute(context.Background(), newSpec(), browsertester.RunOptions{})
		Expect(first.UIResult.VisualBaseline).To(BeTrue())
		Expect(first.UIResult.VisualMatch).To(BeTrue())

		// Identical capture: zero diff, still a match.
		second := exec.Execute(context.Background(), newSpec(), browsertester.RunOptions{})
		Expect(second.UIResult.VisualBaseline).To(BeFalse())
		Expect(second.UIResult.VisualMatch).To(BeTrue())
		Expect(second.UIResult.VisualDiffRatio).To(BeNumerically("==", 0))

		// Every pixel shifted well past the luma threshold: full diff,
		// mismatch halves the visual component of the score.
		page.screenshot = uniformPNG(220)
		third := exec.Execute(context.Background(), newSpec(), browsertester.RunOptions{})
		Expect(third.UIResult.VisualMatch).To(BeFalse())
		Expect(third.UIResult.VisualDiffRatio).To(BeNumerically("==", 1))
		Expect(third.Score).To(BeNumerically("~", 0.5, 1e-9))
	})
})

var _ = Describe("Executor responsive sub-suite", func() {
	It("should evaluate every viewport preset and aggregate the mean", func() {
		page := &fakeResponsivePage{
			fakePage: newFakePage(),
			layout: map[string]bool{
				"no_horizontal_scroll": true,
				"viewport_meta":        true,
				"responsive_images":    true,
				"readable_text":        false,
			},
		}

		spec := &contracts.UITestSpec{
			PageURL:      "https://example.com/",
			Browser:      contracts.BrowserChromium,
			ViewportSize: contracts.ViewportSize{Width: 1280, Height: 720},
		}

		pool := browsertester.NewContextPool(1, factoryReturning(page), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), spec, browsertester.RunOptions{})

		Expect(result.UIResult.ResponsiveResults).To(HaveLen(len(browsertester.ResponsiveViewports)))
		for _, vr := range result.UIResult.ResponsiveResults {
			Expect(vr.Score).To(BeNumerically("~", 0.75, 1e-9))
		}
		Expect(result.UIResult.ResponsiveScore).To(BeNumerically("~", 0.75, 1e-9))
		Expect(result.Score).To(BeNumerically("~", 0.75, 1e-9))
	})

	It("should skip the sub-suite for pages without the capability", func() {
		pool := browsertester.NewContextPool(1, factoryReturning(newFakePage()), nil)
		exec := browsertester.NewExecutor(pool)

		result := exec.Execute(context.Background(), &contracts.UITestSpec{
			PageURL:      "https://example.com/",
			Browser:      contracts.BrowserChromium,
			ViewportSize: contracts.ViewportSize{Width: 1280, Height: 720},
		}, browsertester.RunOptions{})

		Expect(result.UIResult.ResponsiveResults).To(BeEmpty())
	})
})
