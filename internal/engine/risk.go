package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/pulsestack/pulse-predictor/internal/config"
	"github.com/pulsestack/pulse-predictor/internal/models"
)

// Risk bucket boundaries, lower bound inclusive.
const (
	riskHighBoundary   = 0.7
	riskMediumBoundary = 0.4
)

// RiskScorer computes composite per-entity risk scores from aggregated
// metrics and produces deterministic rankings.
type RiskScorer struct {
	weights    config.RiskWeights
	thresholds config.RiskThresholds
}

// NewRiskScorer validates the weights and builds a scorer.
func NewRiskScorer(weights config.RiskWeights, thresholds config.RiskThresholds) (*RiskScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("risk scorer: %w", err)
	}
	return &RiskScorer{weights: weights, thresholds: thresholds}, nil
}

// Score computes the weighted composite risk for one entity. Each factor is
// normalised into [0,1] against its warning/critical band before weighting,
// so the contributions sum to the final score.
func (s *RiskScorer) Score(summary models.EntityMetricsSummary) models.RiskScore {
	trendSeverity := math.Max(summary.ErrorRateChangePct, summary.ProcessingTimeChangePct)
	volumeAnomaly := math.Abs(summary.VolumeChangePct)

	contributions := models.RiskContributions{
		ErrorRate:      s.weights.Error * normalize(summary.ErrorRate, s.thresholds.ErrorRate),
		ProcessingTime: s.weights.Time * normalize(summary.AvgProcessingTimeMs, s.thresholds.ProcessingTimeMs),
		Trend:          s.weights.Trend * normalize(trendSeverity, s.thresholds.TrendPct),
		Volume:         s.weights.Volume * normalize(volumeAnomaly, s.thresholds.VolumePct),
	}

	score := contributions.ErrorRate + contributions.ProcessingTime + contributions.Trend + contributions.Volume
	return models.RiskScore{
		EntityID:      summary.EntityID,
		Score:         score,
		Level:         riskLevel(score),
		Contributions: contributions,
	}
}

// Rank scores every summary and sorts descending by score. Ties break by
// higher error rate, then by entity id ascending, so rankings are
// reproducible.
func (s *RiskScorer) Rank(summaries []models.EntityMetricsSummary) []models.RiskScore {
	scores := make([]models.RiskScore, 0, len(summaries))
	rates := make(map[string]float64, len(summaries))
	for _, summary := range summaries {
		scores = append(scores, s.Score(summary))
		rates[summary.EntityID] = summary.ErrorRate
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		if rates[scores[i].EntityID] != rates[scores[j].EntityID] {
			return rates[scores[i].EntityID] > rates[scores[j].EntityID]
		}
		return scores[i].EntityID < scores[j].EntityID
	})
	return scores
}

// normalize maps a value onto [0,1] against its band: at or below warning
// maps to 0, at or above critical maps to 1, linear in between.
func normalize(value float64, band config.Band) float64 {
	if band.Critical <= band.Warning {
		return 0
	}
	return clamp((value-band.Warning)/(band.Critical-band.Warning), 0, 1)
}

func riskLevel(score float64) models.RiskLevel {
	switch {
	case score >= riskHighBoundary:
		return models.RiskHigh
	case score >= riskMediumBoundary:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
