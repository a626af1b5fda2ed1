package engine

import (
	"fmt"
	"log/slog"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// RuleBasedEstimator is the deterministic fallback strategy. It classifies a
// metrics window by error rate against externally configured thresholds and
// reports a fixed confidence, reflecting that this path is a heuristic rather
// than learned output.
type RuleBasedEstimator struct {
	warningErrorRate  float64
	criticalErrorRate float64
	confidence        float64
	horizonHours      int
	logger            *slog.Logger
}

// NewRuleBasedEstimator constructs an estimator. Thresholds are required and
// warning must sit below critical.
func NewRuleBasedEstimator(warningErrorRate, criticalErrorRate, confidence float64, horizonHours int, logger *slog.Logger) (*RuleBasedEstimator, error) {
	if warningErrorRate <= 0 || criticalErrorRate <= 0 {
		return nil, fmt.Errorf("error-rate thresholds must be positive, got warning=%f critical=%f", warningErrorRate, criticalErrorRate)
	}
	if warningErrorRate >= criticalErrorRate {
		return nil, fmt.Errorf("warning threshold %f must be below critical threshold %f", warningErrorRate, criticalErrorRate)
	}
	if confidence <= 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence must be in (0,1], got %f", confidence)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleBasedEstimator{
		warningErrorRate:  warningErrorRate,
		criticalErrorRate: criticalErrorRate,
		confidence:        confidence,
		horizonHours:      horizonHours,
		logger:            logger,
	}, nil
}

// Estimate classifies the window. An empty window or one with no batches
// yields the insufficient-data sentinel rather than a guess.
func (e *RuleBasedEstimator) Estimate(window models.MetricsWindow) models.PredictionResult {
	if len(window.Samples) == 0 {
		return models.InsufficientData("metrics window has no samples")
	}
	totalBatches := window.TotalBatches()
	if totalBatches == 0 {
		return models.InsufficientData("metrics window has no processed batches")
	}

	errorRate := window.ErrorRate()
	trendPct := processingTimeTrendPct(window.Samples)

	result := models.PredictionResult{
		Confidence:       e.confidence,
		TimeHorizonHours: e.horizonHours,
		Findings: []string{
			fmt.Sprintf("error rate %.4f over %d batches", errorRate, totalBatches),
		},
	}

	switch {
	case errorRate >= e.criticalErrorRate:
		result.Status = models.StatusCritical
		result.RiskFactors = append(result.RiskFactors, fmt.Sprintf("error rate %.4f at or above critical threshold %.4f", errorRate, e.criticalErrorRate))
		result.Recommendations = append(result.Recommendations, "investigate failing batches immediately")
	case errorRate >= e.warningErrorRate:
		result.Status = models.StatusWarning
		result.RiskFactors = append(result.RiskFactors, fmt.Sprintf("error rate %.4f at or above warning threshold %.4f", errorRate, e.warningErrorRate))
		result.Recommendations = append(result.Recommendations, "review recent batch failures")
	default:
		result.Status = models.StatusHealthy
	}

	if trendPct > 0 {
		result.Findings = append(result.Findings, fmt.Sprintf("processing time trending up %.1f%% across the window", trendPct))
		if result.Status != models.StatusHealthy {
			result.RiskFactors = append(result.RiskFactors, "processing time degradation compounds the elevated error rate")
		}
	}

	result.Reasoning = fmt.Sprintf(
		"rule-based classification: error rate %.4f against warning=%.4f critical=%.4f",
		errorRate, e.warningErrorRate, e.criticalErrorRate,
	)

	e.logger.Debug("rule-based estimate",
		slog.String("entity", window.EntityID),
		slog.String("status", string(result.Status)),
		slog.Float64("error_rate", errorRate),
	)
	return result
}

// processingTimeTrendPct compares the mean processing time of the second half
// of the window against the first half. Positive values mean slowdown.
func processingTimeTrendPct(samples []models.BatchSample) float64 {
	if len(samples) < 2 {
		return 0
	}

	mid := len(samples) / 2
	first := meanProcessingTime(samples[:mid])
	second := meanProcessingTime(samples[mid:])
	if first <= 0 {
		return 0
	}
	return (second - first) / first * 100
}

func meanProcessingTime(samples []models.BatchSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.AvgProcessingTimeMs
	}
	return sum / float64(len(samples))
}
