package evaluation

import (
	"log/slog"
	"math"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// significanceLevel is the p-value below which an accuracy difference counts
// as statistically significant.
const significanceLevel = 0.05

// Comparator runs the accuracy evaluator once per strategy and applies a
// two-proportion z-test to decide whether the observed accuracy gap is
// statistically significant. A larger-but-not-significant gap is reported as
// a tie, never as a winner.
type Comparator struct {
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewComparator constructs a Comparator sharing the given evaluator.
func NewComparator(evaluator *Evaluator, logger *slog.Logger) *Comparator {
	if evaluator == nil {
		evaluator = NewEvaluator(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{evaluator: evaluator, logger: logger}
}

// Compare evaluates both strategies' records over the window and returns the
// statistical comparison. Records are expected to be pre-filtered by model
// type by the audit store's query.
func (c *Comparator) Compare(primary, ruleBased []models.PredictionRecord, windowStart, windowEnd time.Time) models.ABComparisonResult {
	primaryPerf := c.performance(models.ModelPrimary, primary, windowStart, windowEnd)
	rulePerf := c.performance(models.ModelRuleBased, ruleBased, windowStart, windowEnd)

	result := models.ABComparisonResult{
		Primary:            primaryPerf,
		RuleBased:          rulePerf,
		AccuracyDifference: primaryPerf.Accuracy - rulePerf.Accuracy,
		F1Difference:       primaryPerf.WeightedF1 - rulePerf.WeightedF1,
		PValue:             1,
		Winner:             models.WinnerTie,
	}

	if primaryPerf.SampleSize == 0 || rulePerf.SampleSize == 0 {
		return result
	}

	result.PValue = twoProportionPValue(
		primaryPerf.Accuracy, primaryPerf.SampleSize,
		rulePerf.Accuracy, rulePerf.SampleSize,
	)
	result.IsSignificant = result.PValue < significanceLevel
	result.EffectSize = cohensD(
		primaryPerf.Accuracy, primaryPerf.SampleSize,
		rulePerf.Accuracy, rulePerf.SampleSize,
	)

	if result.IsSignificant {
		if primaryPerf.Accuracy > rulePerf.Accuracy {
			result.Winner = models.WinnerPrimary
		} else if rulePerf.Accuracy > primaryPerf.Accuracy {
			result.Winner = models.WinnerRuleBased
		}
	}

	c.logger.Debug("model comparison complete",
		slog.Float64("p_value", result.PValue),
		slog.Bool("significant", result.IsSignificant),
		slog.String("winner", result.Winner),
	)
	return result
}

// performance summarises one strategy's evaluated records.
func (c *Comparator) performance(modelType models.ModelType, records []models.PredictionRecord, windowStart, windowEnd time.Time) models.ModelPerformance {
	report := c.evaluator.Evaluate(records, windowStart, windowEnd)

	perf := models.ModelPerformance{
		ModelType:  modelType,
		SampleSize: report.EvaluatedCount,
		Accuracy:   report.OverallAccuracy,
		MacroF1:    report.MacroF1,
		WeightedF1: report.WeightedF1,
	}

	confidenceSum := 0.0
	responseSum := 0.0
	counted := 0
	for _, record := range records {
		if record.IsError {
			perf.ErrorCount++
		}
		if !record.Evaluated() {
			continue
		}
		confidenceSum += record.Result.Confidence
		responseSum += float64(record.ResponseTimeMs)
		counted++
	}
	if counted > 0 {
		perf.AvgConfidence = confidenceSum / float64(counted)
		perf.AvgResponseTimeMs = responseSum / float64(counted)
	}
	return perf
}

// twoProportionPValue is the two-sided p-value of the pooled two-proportion
// z-test: z = (p1-p2) / sqrt(pbar*(1-pbar)*(1/n1+1/n2)).
func twoProportionPValue(p1 float64, n1 int, p2 float64, n2 int) float64 {
	pooled := (p1*float64(n1) + p2*float64(n2)) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		// Both proportions are identical at 0 or 1; no evidence either way.
		return 1
	}
	z := (p1 - p2) / se
	return 2 * (1 - normalCDF(math.Abs(z)))
}

// cohensD is the effect size on the two Bernoulli accuracy samples using the
// pooled standard deviation sqrt(pbar*(1-pbar)).
func cohensD(p1 float64, n1 int, p2 float64, n2 int) float64 {
	pooled := (p1*float64(n1) + p2*float64(n2)) / float64(n1+n2)
	sd := math.Sqrt(pooled * (1 - pooled))
	if sd == 0 {
		return 0
	}
	return (p1 - p2) / sd
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
