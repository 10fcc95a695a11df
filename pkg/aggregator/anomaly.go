package aggregator

import (
	"math"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	"github.com/qualitymesh/aat-core/pkg/shared/mathstat"
)

// minSamplesForAnomalyDetection is the smallest series length over which
// a mean/stddev is considered meaningful enough to flag outliers.
const minSamplesForAnomalyDetection = 10

// DetectAnomalies flags every score sample whose value deviates from its
// series mean by more than sigma standard deviations. Only the "score"
// series is evaluated when it has at least minSamplesForAnomalyDetection
// points; anomalies are informational and never escalate to an alert on
// their own.
func DetectAnomalies(results []contracts.TestResult, sigma float64) []Anomaly {
	if len(results) < minSamplesForAnomalyDetection {
		return nil
	}

	values := make([]float64, len(results))
	for i, r := range results {
		values[i] = resultScore(r)
	}
	mean := mathstat.Mean(values)
	stddev := mathstat.StandardDeviation(values)
	if stddev == 0 {
		return nil
	}

	var anomalies []Anomaly
	for i, r := range results {
		deviation := math.Abs(values[i]-mean) / stddev
		if deviation > sigma {
			anomalies = append(anomalies, Anomaly{
				Metric:    "score",
				Value:     values[i],
				Mean:      mean,
				StdDevs:   deviation,
				Timestamp: r.RecordedAt,
			})
		}
	}
	return anomalies
}
