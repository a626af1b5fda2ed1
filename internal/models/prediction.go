package models

import "time"

// HealthStatus enumerates pipeline health classifications.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "HEALTHY"
	StatusWarning  HealthStatus = "WARNING"
	StatusCritical HealthStatus = "CRITICAL"
	StatusUnknown  HealthStatus = "UNKNOWN"
)

// AllStatuses returns every health status in a fixed order. The order is the
// canonical axis ordering for confusion matrices.
func AllStatuses() []HealthStatus {
	return []HealthStatus{StatusHealthy, StatusWarning, StatusCritical, StatusUnknown}
}

// ValidStatus reports whether s is one of the known health statuses.
func ValidStatus(s HealthStatus) bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusCritical, StatusUnknown:
		return true
	}
	return false
}

// ModelType identifies which prediction strategy produced a result.
type ModelType string

const (
	ModelPrimary   ModelType = "PRIMARY"
	ModelRuleBased ModelType = "RULE_BASED"
)

// PredictionResult is the immutable output of a single prediction.
type PredictionResult struct {
	Status           HealthStatus
	Confidence       float64
	TimeHorizonHours int
	Findings         []string
	RiskFactors      []string
	Recommendations  []string
	Reasoning        string
	Error            string
}

// InsufficientData builds the sentinel result returned when the input window
// carries no usable data points.
func InsufficientData(reason string) PredictionResult {
	return PredictionResult{
		Status:     StatusUnknown,
		Confidence: 0,
		Reasoning:  "insufficient data: " + reason,
		Error:      reason,
	}
}

// BatchSample is one aggregated slice of batch-processing activity.
type BatchSample struct {
	Timestamp           time.Time
	Batches             int
	Errors              int
	AvgProcessingTimeMs float64
}

// MetricsWindow is the ordered set of samples a prediction is based on.
type MetricsWindow struct {
	EntityID string
	Samples  []BatchSample
}

// TotalBatches sums batch counts across the window.
func (w MetricsWindow) TotalBatches() int {
	total := 0
	for _, s := range w.Samples {
		total += s.Batches
	}
	return total
}

// TotalErrors sums error counts across the window.
func (w MetricsWindow) TotalErrors() int {
	total := 0
	for _, s := range w.Samples {
		total += s.Errors
	}
	return total
}

// ErrorRate returns total errors over total batches, zero when empty.
func (w MetricsWindow) ErrorRate() float64 {
	batches := w.TotalBatches()
	if batches == 0 {
		return 0
	}
	return float64(w.TotalErrors()) / float64(batches)
}

// PredictionRequest carries the inputs for a single prediction call.
type PredictionRequest struct {
	MerchantID        string
	Window            MetricsWindow
	TimeHorizonHours  int
	HistoricalContext []string
}

// PredictionRecord is the audit-store view of a completed prediction. The
// record is created at prediction time and mutated exactly once when the
// observed outcome becomes known.
type PredictionRecord struct {
	ID             string
	MerchantID     string
	ModelType      ModelType
	PredictionTime time.Time
	Result         PredictionResult
	ActualOutcome  *HealthStatus
	IsCorrect      *bool
	ResponseTimeMs int64
	IsError        bool
}

// Evaluated reports whether ground truth has been recorded for the prediction.
func (r PredictionRecord) Evaluated() bool {
	return r.ActualOutcome != nil
}

// EntityMetricsSummary aggregates one entity's recent operational metrics over
// a caller-supplied window. Read-only input to risk scoring.
type EntityMetricsSummary struct {
	EntityID                string
	ErrorRate               float64
	AvgProcessingTimeMs     float64
	ErrorRateChangePct      float64
	ProcessingTimeChangePct float64
	VolumeChangePct         float64
	TotalBatches            int
	TotalErrors             int
}

// RiskLevel buckets a composite risk score.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "HIGH"
	RiskMedium RiskLevel = "MEDIUM"
	RiskLow    RiskLevel = "LOW"
)

// RiskContributions breaks a risk score into its weighted factor parts.
type RiskContributions struct {
	ErrorRate      float64
	ProcessingTime float64
	Trend          float64
	Volume         float64
}

// RiskScore is the composite risk assessment for one entity.
type RiskScore struct {
	EntityID      string
	Score         float64
	Level         RiskLevel
	Contributions RiskContributions
}
