package models

import "time"

// ConfusionMatrix counts predicted-vs-actual pairs over the health statuses,
// including UNKNOWN so unresolved cases are never silently dropped.
type ConfusionMatrix struct {
	Classes []HealthStatus
	Counts  map[HealthStatus]map[HealthStatus]int
}

// NewConfusionMatrix builds an empty matrix over the canonical status set.
func NewConfusionMatrix() ConfusionMatrix {
	classes := AllStatuses()
	counts := make(map[HealthStatus]map[HealthStatus]int, len(classes))
	for _, predicted := range classes {
		row := make(map[HealthStatus]int, len(classes))
		for _, actual := range classes {
			row[actual] = 0
		}
		counts[predicted] = row
	}
	return ConfusionMatrix{Classes: classes, Counts: counts}
}

// Add increments the cell for one predicted/actual pair. Unknown labels fold
// into the UNKNOWN bucket.
func (m ConfusionMatrix) Add(predicted, actual HealthStatus) {
	if !ValidStatus(predicted) {
		predicted = StatusUnknown
	}
	if !ValidStatus(actual) {
		actual = StatusUnknown
	}
	m.Counts[predicted][actual]++
}

// Cell returns the count for one predicted/actual pair.
func (m ConfusionMatrix) Cell(predicted, actual HealthStatus) int {
	row, ok := m.Counts[predicted]
	if !ok {
		return 0
	}
	return row[actual]
}

// Total sums every cell in the matrix.
func (m ConfusionMatrix) Total() int {
	total := 0
	for _, row := range m.Counts {
		for _, count := range row {
			total += count
		}
	}
	return total
}

// Support returns how often a status occurred as the actual outcome.
func (m ConfusionMatrix) Support(actual HealthStatus) int {
	support := 0
	for _, predicted := range m.Classes {
		support += m.Counts[predicted][actual]
	}
	return support
}

// ClassificationMetrics holds per-status evaluation counters and the derived
// rates. Precision, recall, and F1 are defined as 0 (not NaN) whenever their
// denominator is 0; ZeroDenominatorNote on the report documents this.
type ClassificationMetrics struct {
	Status         HealthStatus
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int
	Precision      float64
	Recall         float64
	F1             float64
	Support        int
}

// CalibrationBucket compares stated confidence to empirical accuracy within
// one confidence decile.
type CalibrationBucket struct {
	LowerBound        float64
	UpperBound        float64
	Count             int
	MeanConfidence    float64
	EmpiricalAccuracy float64
}

// AccuracyReport is the evaluator's rollup over one lookback window.
type AccuracyReport struct {
	WindowStart         time.Time
	WindowEnd           time.Time
	EvaluatedCount      int
	CorrectCount        int
	OverallAccuracy     float64
	MacroF1             float64
	WeightedF1          float64
	PerClass            map[HealthStatus]ClassificationMetrics
	Matrix              ConfusionMatrix
	Calibration         []CalibrationBucket
	AccuracyTrend       float64
	InsufficientData    bool
	ZeroDenominatorNote string
}

// DriftEvent records one detected accuracy degradation. Resolution is an
// operational action taken outside this engine.
type DriftEvent struct {
	DetectedAt       time.Time
	DriftScore       float64
	BaselineAccuracy float64
	CurrentAccuracy  float64
	Resolved         bool
}

// ModelPerformance summarises one strategy's evaluated records.
type ModelPerformance struct {
	ModelType         ModelType
	SampleSize        int
	Accuracy          float64
	MacroF1           float64
	WeightedF1        float64
	AvgConfidence     float64
	AvgResponseTimeMs float64
	ErrorCount        int
}

// Winner labels for A/B comparisons.
const (
	WinnerPrimary   = "PRIMARY"
	WinnerRuleBased = "RULE_BASED"
	WinnerTie       = "TIE"
)

// ABComparisonResult is the statistical comparison between the primary and
// rule-based strategies over one window.
type ABComparisonResult struct {
	Primary            ModelPerformance
	RuleBased          ModelPerformance
	AccuracyDifference float64
	F1Difference       float64
	PValue             float64
	IsSignificant      bool
	EffectSize         float64
	Winner             string
}
