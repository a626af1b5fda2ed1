package evaluation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/metrics"
	"github.com/pulsestack/pulse-predictor/internal/models"
)

// DriftDetector compares each period's evaluated accuracy against a rolling
// baseline (the previous period's accuracy) and emits descriptive events when
// the drop exceeds the configured threshold. Detection only: resolution is an
// operational action taken elsewhere, and no remediation is triggered here.
type DriftDetector struct {
	threshold float64
	logger    *slog.Logger

	mu       sync.Mutex
	baseline *float64
	events   []models.DriftEvent

	now func() time.Time
}

// NewDriftDetector constructs a detector. The threshold is the absolute
// accuracy drop that qualifies as drift and is required.
func NewDriftDetector(threshold float64, logger *slog.Logger) (*DriftDetector, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("drift threshold must be in (0,1), got %f", threshold)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DriftDetector{threshold: threshold, logger: logger, now: time.Now}, nil
}

// Observe feeds one period's report into the detector. It returns the drift
// event when the baseline-to-current drop exceeds the threshold, nil
// otherwise. Insufficient-data reports neither trigger drift nor move the
// baseline.
func (d *DriftDetector) Observe(report models.AccuracyReport) *models.DriftEvent {
	if report.InsufficientData {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var event *models.DriftEvent
	if d.baseline != nil {
		score := *d.baseline - report.OverallAccuracy
		if score > d.threshold {
			event = &models.DriftEvent{
				DetectedAt:       d.now(),
				DriftScore:       score,
				BaselineAccuracy: *d.baseline,
				CurrentAccuracy:  report.OverallAccuracy,
				Resolved:         false,
			}
			d.events = append(d.events, *event)
			metrics.IncDriftEvent()
			d.logger.Warn("accuracy drift detected",
				slog.Float64("baseline", event.BaselineAccuracy),
				slog.Float64("current", event.CurrentAccuracy),
				slog.Float64("score", event.DriftScore),
			)
		}
	}

	baseline := report.OverallAccuracy
	d.baseline = &baseline
	return event
}

// Events returns a copy of all detected drift events.
func (d *DriftDetector) Events() []models.DriftEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.DriftEvent(nil), d.events...)
}

// Baseline returns the current baseline accuracy and whether one is set.
func (d *DriftDetector) Baseline() (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.baseline == nil {
		return 0, false
	}
	return *d.baseline, true
}
