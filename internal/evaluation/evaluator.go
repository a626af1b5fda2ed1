package evaluation

import (
	"log/slog"
	"sort"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// zeroDenominatorNote documents the defined-zero convention so report readers
// can tell "zero support" apart from "zero performance".
const zeroDenominatorNote = "precision/recall/F1 are defined as 0 when their denominator is 0; classes with zero support are excluded from macroF1"

// calibrationBuckets is the number of confidence deciles.
const calibrationBuckets = 10

// Evaluator builds accuracy rollups from evaluated prediction records. All
// methods are pure batch computations over a snapshot and never mutate
// prediction or cache state, so they can run alongside live traffic.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate computes the confusion matrix, per-class metrics, F1 rollups,
// confidence calibration, and accuracy trend over the records that carry an
// observed outcome. An empty evaluated set yields an explicit
// insufficient-data report instead of a division by zero.
func (e *Evaluator) Evaluate(records []models.PredictionRecord, windowStart, windowEnd time.Time) models.AccuracyReport {
	report := models.AccuracyReport{
		WindowStart:         windowStart,
		WindowEnd:           windowEnd,
		Matrix:              models.NewConfusionMatrix(),
		PerClass:            make(map[models.HealthStatus]models.ClassificationMetrics),
		ZeroDenominatorNote: zeroDenominatorNote,
	}

	evaluated := make([]models.PredictionRecord, 0, len(records))
	for _, record := range records {
		if !record.Evaluated() {
			continue
		}
		evaluated = append(evaluated, record)
	}

	if len(evaluated) == 0 {
		report.InsufficientData = true
		e.logger.Debug("no evaluated predictions in window")
		return report
	}

	correct := 0
	for _, record := range evaluated {
		report.Matrix.Add(record.Result.Status, *record.ActualOutcome)
		if record.Result.Status == *record.ActualOutcome {
			correct++
		}
	}

	report.EvaluatedCount = len(evaluated)
	report.CorrectCount = correct
	report.OverallAccuracy = float64(correct) / float64(len(evaluated))
	report.PerClass = classMetrics(report.Matrix)
	report.MacroF1, report.WeightedF1 = f1Rollups(report.PerClass, len(evaluated))
	report.Calibration = calibration(evaluated)
	report.AccuracyTrend = accuracyTrend(evaluated)

	e.logger.Debug("accuracy evaluation complete",
		slog.Int("evaluated", report.EvaluatedCount),
		slog.Float64("accuracy", report.OverallAccuracy),
	)
	return report
}

// classMetrics derives per-status TP/FP/FN/TN and rates from the matrix.
// Every rate with a zero denominator is 0 by definition.
func classMetrics(matrix models.ConfusionMatrix) map[models.HealthStatus]models.ClassificationMetrics {
	total := matrix.Total()
	perClass := make(map[models.HealthStatus]models.ClassificationMetrics, len(matrix.Classes))

	for _, status := range matrix.Classes {
		tp := matrix.Cell(status, status)
		fp := 0
		fn := 0
		for _, other := range matrix.Classes {
			if other == status {
				continue
			}
			fp += matrix.Cell(status, other)
			fn += matrix.Cell(other, status)
		}
		tn := total - tp - fp - fn

		m := models.ClassificationMetrics{
			Status:         status,
			TruePositives:  tp,
			FalsePositives: fp,
			FalseNegatives: fn,
			TrueNegatives:  tn,
			Support:        matrix.Support(status),
		}
		m.Precision = safeRatio(tp, tp+fp)
		m.Recall = safeRatio(tp, tp+fn)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		perClass[status] = m
	}
	return perClass
}

// f1Rollups computes the unweighted mean F1 over classes with nonzero
// support and the support-weighted F1 over all evaluated records.
func f1Rollups(perClass map[models.HealthStatus]models.ClassificationMetrics, evaluated int) (macro, weighted float64) {
	supported := 0
	for _, m := range perClass {
		if m.Support == 0 {
			continue
		}
		supported++
		macro += m.F1
		weighted += m.F1 * float64(m.Support) / float64(evaluated)
	}
	if supported > 0 {
		macro /= float64(supported)
	}
	return macro, weighted
}

// calibration buckets predictions by confidence decile and compares each
// bucket's mean stated confidence to its empirical accuracy. The final
// bucket is closed at 1.0 so full-confidence predictions are counted.
func calibration(records []models.PredictionRecord) []models.CalibrationBucket {
	buckets := make([]models.CalibrationBucket, calibrationBuckets)
	sums := make([]float64, calibrationBuckets)
	hits := make([]int, calibrationBuckets)

	for i := range buckets {
		buckets[i].LowerBound = float64(i) / calibrationBuckets
		buckets[i].UpperBound = float64(i+1) / calibrationBuckets
	}

	for _, record := range records {
		idx := int(record.Result.Confidence * calibrationBuckets)
		if idx >= calibrationBuckets {
			idx = calibrationBuckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
		sums[idx] += record.Result.Confidence
		if record.Result.Status == *record.ActualOutcome {
			hits[idx]++
		}
	}

	for i := range buckets {
		if buckets[i].Count == 0 {
			continue
		}
		buckets[i].MeanConfidence = sums[i] / float64(buckets[i].Count)
		buckets[i].EmpiricalAccuracy = float64(hits[i]) / float64(buckets[i].Count)
	}
	return buckets
}

// accuracyTrend compares second-half accuracy against first-half accuracy by
// prediction time. Positive values mean the model is improving.
func accuracyTrend(records []models.PredictionRecord) float64 {
	if len(records) < 2 {
		return 0
	}

	ordered := append([]models.PredictionRecord(nil), records...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PredictionTime.Before(ordered[j].PredictionTime)
	})

	mid := len(ordered) / 2
	return halfAccuracy(ordered[mid:]) - halfAccuracy(ordered[:mid])
}

func halfAccuracy(records []models.PredictionRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	correct := 0
	for _, record := range records {
		if record.Result.Status == *record.ActualOutcome {
			correct++
		}
	}
	return float64(correct) / float64(len(records))
}

func safeRatio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
