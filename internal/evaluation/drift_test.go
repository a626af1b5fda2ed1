package evaluation

import (
	"testing"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

func reportWithAccuracy(accuracy float64) models.AccuracyReport {
	return models.AccuracyReport{OverallAccuracy: accuracy, EvaluatedCount: 50}
}

func TestNewDriftDetectorRejectsBadThreshold(t *testing.T) {
	if _, err := NewDriftDetector(0, nil); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	if _, err := NewDriftDetector(1.5, nil); err == nil {
		t.Fatalf("expected error for threshold above 1")
	}
}

func TestFirstObservationSetsBaselineWithoutDrift(t *testing.T) {
	detector, err := NewDriftDetector(0.3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event := detector.Observe(reportWithAccuracy(0.9)); event != nil {
		t.Fatalf("expected no drift on first observation, got %+v", event)
	}
	baseline, ok := detector.Baseline()
	if !ok || baseline != 0.9 {
		t.Fatalf("expected baseline 0.9, got %f (%v)", baseline, ok)
	}
}

func TestDriftDetectedOnLargeDrop(t *testing.T) {
	detector, err := NewDriftDetector(0.3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detector.Observe(reportWithAccuracy(0.9))
	event := detector.Observe(reportWithAccuracy(0.5))
	if event == nil {
		t.Fatalf("expected drift event for 0.4 drop")
	}
	if event.BaselineAccuracy != 0.9 || event.CurrentAccuracy != 0.5 {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Resolved {
		t.Fatalf("expected new event unresolved")
	}
	if len(detector.Events()) != 1 {
		t.Fatalf("expected one stored event")
	}

	// Baseline rolls to the latest period.
	baseline, _ := detector.Baseline()
	if baseline != 0.5 {
		t.Fatalf("expected baseline rolled to 0.5, got %f", baseline)
	}
}

func TestSmallDropDoesNotTriggerDrift(t *testing.T) {
	detector, err := NewDriftDetector(0.3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detector.Observe(reportWithAccuracy(0.9))
	if event := detector.Observe(reportWithAccuracy(0.7)); event != nil {
		t.Fatalf("expected no drift for 0.2 drop, got %+v", event)
	}
}

func TestInsufficientDataReportsIgnored(t *testing.T) {
	detector, err := NewDriftDetector(0.3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	detector.Observe(reportWithAccuracy(0.9))
	empty := models.AccuracyReport{InsufficientData: true}
	if event := detector.Observe(empty); event != nil {
		t.Fatalf("expected insufficient-data report ignored")
	}
	baseline, _ := detector.Baseline()
	if baseline != 0.9 {
		t.Fatalf("expected baseline unchanged at 0.9, got %f", baseline)
	}
}
