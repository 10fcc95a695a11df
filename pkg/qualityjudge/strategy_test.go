package qualityjudge_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/qualityjudge"
)

func TestQualityJudgeStrategies(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Quality Judge Strategy Suite")
}

// fixedJudge is a Judge stand-in returning a fixed score/confidence for
// every metric, so tests can assert on strategy combination logic without
// depending on the reference judge's heuristic.
type fixedJudge struct {
	name       string
	score      float64
	confidence float64
}

func (j *fixedJudge) Name() string { return j.name }
func (j *fixedJudge) Assess(ctx context.Context, req qualityjudge.AssessRequest) contracts.QualityScore {
	return contracts.QualityScore{Metric: req.Metric, Score: j.score, Confidence: j.confidence, Rationale: j.name + " says so"}
}

var _ = Describe("Quality judge engine", func() {
	baseReq := qualityjudge.AssessmentRequest{
		InputPrompt: "Explain recursion.",
		AIOutput:    "Recursion is when a function calls itself.",
		Metrics:     []contracts.QualityMetric{contracts.MetricAccuracy, contracts.MetricCoherence},
	}

	Context("with no judges configured", func() {
		It("returns ErrNoJudgesAvailable", func() {
			engine := qualityjudge.NewEngine()
			_, err := engine.Assess(context.Background(), baseReq)
			Expect(err).To(MatchError(qualityjudge.ErrNoJudgesAvailable))
		})
	})

	Context("SINGLE strategy", func() {
		It("uses only the first judge for every metric", func() {
			a := &fixedJudge{name: "a", score: 0.9, confidence: 0.9}
			b := &fixedJudge{name: "b", score: 0.1, confidence: 0.9}
			engine := qualityjudge.NewEngine(a, b)

			req := baseReq
			req.Strategy = contracts.StrategySingle
			result, err := engine.Assess(context.Background(), req)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Scores).To(HaveLen(2))
			for _, s := range result.Scores {
				Expect(s.Score).To(Equal(0.9))
			}
		})
	})

	Context("MULTI strategy", func() {
		It("preserves every judge's individual score per metric", func() {
			a := &fixedJudge{name: "a", score: 0.8, confidence: 0.9}
			b := &fixedJudge{name: "b", score: 0.4, confidence: 0.9}
			engine := qualityjudge.NewEngine(a, b)

			req := baseReq
			req.Strategy = contracts.StrategyMulti
			result, err := engine.Assess(context.Background(), req)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Scores).To(HaveLen(4)) // 2 metrics x 2 judges
		})
	})

	Context("ENSEMBLE strategy", func() {
		It("combines per-judge scores into one confidence-weighted score per metric", func() {
			a := &fixedJudge{name: "a", score: 1.0, confidence: 0.8}
			b := &fixedJudge{name: "b", score: 0.0, confidence: 0.2}
			engine := qualityjudge.NewEngine(a, b)

			req := baseReq
			req.Strategy = contracts.StrategyEnsemble
			result, err := engine.Assess(context.Background(), req)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Scores).To(HaveLen(2)) // one combined score per metric
			for _, s := range result.Scores {
				// weighted toward judge a, which has higher confidence
				Expect(s.Score).To(BeNumerically(">", 0.5))
			}
		})

		It("falls back when every judge's confidence is below the failure floor", func() {
			a := &fixedJudge{name: "a", score: 0.9, confidence: 0.1}
			b := &fixedJudge{name: "b", score: 0.9, confidence: 0.15}
			engine := qualityjudge.NewEngine(a, b)

			req := baseReq
			req.Strategy = contracts.StrategyEnsemble
			result, err := engine.Assess(context.Background(), req)

			Expect(err).NotTo(HaveOccurred())
			for _, s := range result.Scores {
				Expect(s.Confidence).To(Equal(0.1))
				Expect(s.Score).To(Equal(0.5))
			}
		})
	})

	Context("SPECIALIZED strategy", func() {
		It("round-robin assigns each metric to one judge deterministically", func() {
			a := &fixedJudge{name: "a", score: 0.7, confidence: 0.9}
			b := &fixedJudge{name: "b", score: 0.3, confidence: 0.9}
			engine := qualityjudge.NewEngine(a, b)

			req := qualityjudge.AssessmentRequest{
				InputPrompt: baseReq.InputPrompt,
				AIOutput:    baseReq.AIOutput,
				Metrics:     []contracts.QualityMetric{contracts.MetricAccuracy, contracts.MetricCoherence, contracts.MetricSafety},
				Strategy:    contracts.StrategySpecialized,
			}
			first, err := engine.Assess(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Assess(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Scores).To(Equal(second.Scores))
		})
	})

	Context("overall score weighting", func() {
		It("weights each metric by its configured weight", func() {
			judge := &fixedJudge{name: "only", score: 1.0, confidence: 0.9}
			engine := qualityjudge.NewEngine(judge)

			req := qualityjudge.AssessmentRequest{
				InputPrompt: baseReq.InputPrompt,
				AIOutput:    baseReq.AIOutput,
				Metrics:     []contracts.QualityMetric{contracts.MetricSafety},
				Strategy:    contracts.StrategySingle,
			}
			result, err := engine.Assess(context.Background(), req)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OverallScore).To(Equal(1.0))
		})
	})

	Context("with a cache attached", func() {
		It("serves an identical request from cache without recomputing judges", func() {
			calls := 0
			judge := &countingJudge{score: 0.7, confidence: 0.9, calls: &calls}
			cache := qualityjudge.NewCache(nil, 3600_000_000_000, 0.2)
			engine := qualityjudge.NewEngine(judge).WithCache(cache)

			req := baseReq
			req.Strategy = contracts.StrategySingle

			first, err := engine.Assess(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(2)) // 2 metrics

			second, err := engine.Assess(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(2)) // unchanged: served from cache
			Expect(second.OverallScore).To(Equal(first.OverallScore))
			Expect(second.CacheHit).To(BeTrue())
		})
	})
})

type countingJudge struct {
	score      float64
	confidence float64
	calls      *int
}

func (j *countingJudge) Name() string { return "counting" }
func (j *countingJudge) Assess(ctx context.Context, req qualityjudge.AssessRequest) contracts.QualityScore {
	*j.calls++
	return contracts.QualityScore{Metric: req.Metric, Score: j.score, Confidence: j.confidence}
}
