package evaluation

import (
	"math"
	"testing"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// modelRecords builds total evaluated records for one strategy, the first
// correct of them predicted correctly.
func modelRecords(modelType models.ModelType, correct, total int) []models.PredictionRecord {
	records := make([]models.PredictionRecord, 0, total)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < total; i++ {
		actual := models.StatusHealthy
		predicted := models.StatusHealthy
		if i >= correct {
			predicted = models.StatusCritical
		}
		outcome := actual
		records = append(records, models.PredictionRecord{
			ModelType:      modelType,
			PredictionTime: base.Add(time.Duration(i) * time.Minute),
			Result:         models.PredictionResult{Status: predicted, Confidence: 0.8},
			ActualOutcome:  &outcome,
			ResponseTimeMs: 120,
		})
	}
	return records
}

func TestCompareLargeGapIsSignificant(t *testing.T) {
	comparator := NewComparator(NewEvaluator(nil), nil)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	primary := modelRecords(models.ModelPrimary, 90, 100)
	ruleBased := modelRecords(models.ModelRuleBased, 70, 100)

	result := comparator.Compare(primary, ruleBased, start, end)
	if !result.IsSignificant {
		t.Fatalf("expected 0.90 vs 0.70 with n=100 to be significant, p=%f", result.PValue)
	}
	if result.Winner != models.WinnerPrimary {
		t.Fatalf("expected PRIMARY winner, got %s", result.Winner)
	}
	if math.Abs(result.AccuracyDifference-0.2) > 1e-9 {
		t.Fatalf("expected accuracy difference 0.2, got %f", result.AccuracyDifference)
	}
	if result.EffectSize <= 0 {
		t.Fatalf("expected positive effect size, got %f", result.EffectSize)
	}
}

func TestCompareSmallSampleGapIsTie(t *testing.T) {
	comparator := NewComparator(NewEvaluator(nil), nil)
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	// 75% vs 70% on 20 samples each: a visible raw gap that is nowhere near
	// significance must be reported as a tie.
	primary := modelRecords(models.ModelPrimary, 15, 20)
	ruleBased := modelRecords(models.ModelRuleBased, 14, 20)

	result := comparator.Compare(primary, ruleBased, start, end)
	if result.IsSignificant {
		t.Fatalf("expected insignificant result, p=%f", result.PValue)
	}
	if result.Winner != models.WinnerTie {
		t.Fatalf("expected TIE despite raw difference, got %s", result.Winner)
	}
	if result.AccuracyDifference == 0 {
		t.Fatalf("expected nonzero raw accuracy difference")
	}
}

func TestCompareEmptySampleIsTie(t *testing.T) {
	comparator := NewComparator(NewEvaluator(nil), nil)
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	result := comparator.Compare(nil, modelRecords(models.ModelRuleBased, 10, 10), start, end)
	if result.Winner != models.WinnerTie {
		t.Fatalf("expected TIE with an empty sample, got %s", result.Winner)
	}
	if result.PValue != 1 {
		t.Fatalf("expected p-value 1 with an empty sample, got %f", result.PValue)
	}
}

func TestCompareIdenticalPerfectAccuracies(t *testing.T) {
	comparator := NewComparator(NewEvaluator(nil), nil)
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now()

	// Pooled variance is zero; the z-test degenerates and must report a tie
	// rather than dividing by zero.
	result := comparator.Compare(
		modelRecords(models.ModelPrimary, 10, 10),
		modelRecords(models.ModelRuleBased, 10, 10),
		start, end,
	)
	if result.PValue != 1 || result.IsSignificant {
		t.Fatalf("expected degenerate comparison to be insignificant, got %+v", result)
	}
	if result.Winner != models.WinnerTie {
		t.Fatalf("expected TIE, got %s", result.Winner)
	}
}

func TestTwoProportionPValueKnownValue(t *testing.T) {
	// p1=0.9, p2=0.7, n=100 each: pooled=0.8, se=sqrt(0.8*0.2*0.02)≈0.05657,
	// z≈3.54, two-sided p≈0.0004.
	p := twoProportionPValue(0.9, 100, 0.7, 100)
	if p > 0.001 {
		t.Fatalf("expected p below 0.001, got %f", p)
	}
}

func TestCohensDUsesPooledBernoulliSD(t *testing.T) {
	// Documented effect-size formula: d = (p1-p2)/sqrt(pbar*(1-pbar)).
	d := cohensD(0.9, 100, 0.7, 100)
	expected := 0.2 / math.Sqrt(0.8*0.2)
	if math.Abs(d-expected) > 1e-9 {
		t.Fatalf("expected d %f, got %f", expected, d)
	}
}

func TestPerformanceAggregatesResponseStats(t *testing.T) {
	comparator := NewComparator(NewEvaluator(nil), nil)
	records := modelRecords(models.ModelPrimary, 8, 10)
	records[0].IsError = true

	perf := comparator.performance(models.ModelPrimary, records, time.Now().Add(-time.Hour), time.Now())
	if perf.SampleSize != 10 {
		t.Fatalf("expected 10 evaluated records, got %d", perf.SampleSize)
	}
	if perf.ErrorCount != 1 {
		t.Fatalf("expected one error record, got %d", perf.ErrorCount)
	}
	if math.Abs(perf.AvgConfidence-0.8) > 1e-9 {
		t.Fatalf("expected avg confidence 0.8, got %f", perf.AvgConfidence)
	}
	if math.Abs(perf.AvgResponseTimeMs-120) > 1e-9 {
		t.Fatalf("expected avg response 120ms, got %f", perf.AvgResponseTimeMs)
	}
}
