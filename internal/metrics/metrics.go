package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels predictions that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels predictions that failed (upstream or timeout).
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse_predictor",
			Name:      "predictions_total",
			Help:      "Total predictions computed, partitioned by strategy and outcome.",
		},
		[]string{"model", "outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pulse_predictor",
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds, partitioned by strategy.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"model"},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse_predictor",
			Name:      "cache_hits_total",
			Help:      "Prediction requests served from the result cache.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse_predictor",
			Name:      "cache_misses_total",
			Help:      "Prediction requests that required a computation.",
		},
	)

	budgetDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse_predictor",
			Name:      "budget_denied_total",
			Help:      "Primary-path requests routed to rules because the daily budget was exhausted.",
		},
	)

	driftEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse_predictor",
			Name:      "drift_events_total",
			Help:      "Accuracy drift events detected.",
		},
	)

	evaluationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse_predictor",
			Name:      "evaluation_seconds",
			Help:      "Accuracy evaluation cycle latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// Register attaches the predictor collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		cacheHitsTotal,
		cacheMissesTotal,
		budgetDeniedTotal,
		driftEventsTotal,
		evaluationDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records one computed prediction with its strategy,
// outcome label, and duration.
func ObservePrediction(model string, outcome string, duration time.Duration) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(model, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.WithLabelValues(model).Observe(duration.Seconds())
}

// IncCacheHit counts a cache-served prediction.
func IncCacheHit() { cacheHitsTotal.Inc() }

// IncCacheMiss counts a computed prediction.
func IncCacheMiss() { cacheMissesTotal.Inc() }

// IncBudgetDenied counts a budget-driven routing decision.
func IncBudgetDenied() { budgetDeniedTotal.Inc() }

// IncDriftEvent counts a detected drift event.
func IncDriftEvent() { driftEventsTotal.Inc() }

// ObserveEvaluation records an evaluation cycle duration.
func ObserveEvaluation(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	evaluationDurationSeconds.Observe(duration.Seconds())
}
