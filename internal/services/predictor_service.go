package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/engine"
	"github.com/pulsestack/pulse-predictor/internal/evaluation"
	"github.com/pulsestack/pulse-predictor/internal/metrics"
	"github.com/pulsestack/pulse-predictor/internal/models"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

// RecordStore defines the audit-store operations the service needs.
type RecordStore interface {
	RecordOutcome(ctx context.Context, id string, outcome models.HealthStatus) error
	QueryEvaluated(ctx context.Context, since time.Time, modelFilter *models.ModelType) ([]models.PredictionRecord, error)
}

// MetricsSource supplies batch metrics for predictions and risk rankings.
type MetricsSource interface {
	EntitySummaries(ctx context.Context, start, end time.Time) ([]models.EntityMetricsSummary, error)
	FetchWindow(ctx context.Context, entityID string, start, end time.Time) (models.MetricsWindow, error)
}

// PredictorService is the application facade: it joins the prediction
// orchestrator, the evaluation components, and the risk scorer behind one
// surface for callers and the evaluation loop.
type PredictorService struct {
	logger        *slog.Logger
	orchestrator  *engine.Orchestrator
	evaluator     *evaluation.Evaluator
	drift         *evaluation.DriftDetector
	comparator    *evaluation.Comparator
	risk          *engine.RiskScorer
	store         RecordStore
	metricsSource MetricsSource
	lookback      time.Duration
	latencies     *utils.LatencyTracker

	now func() time.Time
}

// NewPredictorService wires the facade. Orchestrator, evaluator, and store
// are required; drift, comparator, risk scorer, and metrics source may be nil
// when the corresponding operation is unused.
func NewPredictorService(
	logger *slog.Logger,
	orchestrator *engine.Orchestrator,
	evaluator *evaluation.Evaluator,
	drift *evaluation.DriftDetector,
	comparator *evaluation.Comparator,
	risk *engine.RiskScorer,
	store RecordStore,
	metricsSource MetricsSource,
	lookback time.Duration,
) (*PredictorService, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictorService{
		logger:        logger,
		orchestrator:  orchestrator,
		evaluator:     evaluator,
		drift:         drift,
		comparator:    comparator,
		risk:          risk,
		store:         store,
		metricsSource: metricsSource,
		lookback:      lookback,
		latencies:     utils.NewLatencyTracker(1024),
		now:           time.Now,
	}, nil
}

// Predict fetches the merchant's recent metrics window and resolves a health
// prediction through the orchestrator.
func (s *PredictorService) Predict(ctx context.Context, merchantID string, timeHorizonHours int) (models.PredictionResult, error) {
	if merchantID == "" {
		return models.PredictionResult{}, fmt.Errorf("merchant id is required")
	}
	if timeHorizonHours <= 0 {
		return models.PredictionResult{}, fmt.Errorf("time horizon must be positive")
	}
	if s.metricsSource == nil {
		return models.PredictionResult{}, fmt.Errorf("metrics source not configured")
	}

	end := s.now()
	window, err := s.metricsSource.FetchWindow(ctx, merchantID, end.Add(-s.lookback), end)
	if err != nil {
		return models.PredictionResult{}, fmt.Errorf("fetch metrics window: %w", err)
	}

	req := models.PredictionRequest{
		MerchantID:       merchantID,
		TimeHorizonHours: timeHorizonHours,
		Window:           window,
	}

	start := s.now()
	result, err := s.orchestrator.Predict(ctx, req)
	duration := s.now().Sub(start)
	if err != nil {
		s.logger.Error("prediction failed", slog.String("merchant", merchantID), slog.Any("error", err))
		return models.PredictionResult{}, err
	}

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("prediction latency",
			slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
	return result, nil
}

// RecordOutcome attaches the observed health outcome to a past prediction.
func (s *PredictorService) RecordOutcome(ctx context.Context, recordID string, outcome models.HealthStatus) error {
	if recordID == "" {
		return fmt.Errorf("record id is required")
	}
	if err := s.store.RecordOutcome(ctx, recordID, outcome); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// EvaluateAccuracy builds an accuracy report over evaluated predictions in
// the lookback window, optionally restricted to one model type.
func (s *PredictorService) EvaluateAccuracy(ctx context.Context, lookback time.Duration, modelFilter *models.ModelType) (models.AccuracyReport, error) {
	if lookback <= 0 {
		lookback = s.lookback
	}
	end := s.now()
	start := end.Add(-lookback)

	records, err := s.store.QueryEvaluated(ctx, start, modelFilter)
	if err != nil {
		return models.AccuracyReport{}, fmt.Errorf("query evaluated records: %w", err)
	}

	evalStart := s.now()
	report := s.evaluator.Evaluate(records, start, end)
	metrics.ObserveEvaluation(s.now().Sub(evalStart))
	return report, nil
}

// RunEvaluationCycle evaluates recent accuracy and feeds the report to the
// drift detector. Insufficient data is not an error; the cycle simply logs
// and returns.
func (s *PredictorService) RunEvaluationCycle(ctx context.Context) error {
	report, err := s.EvaluateAccuracy(ctx, s.lookback, nil)
	if err != nil {
		return err
	}
	if report.InsufficientData {
		s.logger.Info("evaluation cycle skipped, not enough evaluated predictions")
		return nil
	}

	if s.drift != nil {
		// The detector logs and counts drift itself; the cycle only records
		// that it ran.
		s.drift.Observe(report)
	}

	s.logger.Info("evaluation cycle complete",
		slog.Int("evaluated", report.EvaluatedCount),
		slog.Float64("accuracy", report.OverallAccuracy),
		slog.Float64("macro_f1", report.MacroF1))
	return nil
}

// CompareModels runs the statistical A/B comparison between the primary and
// rule-based strategies over the lookback window.
func (s *PredictorService) CompareModels(ctx context.Context, lookback time.Duration) (models.ABComparisonResult, error) {
	if s.comparator == nil {
		return models.ABComparisonResult{}, fmt.Errorf("comparator not configured")
	}
	if lookback <= 0 {
		lookback = s.lookback
	}
	end := s.now()
	start := end.Add(-lookback)

	primaryType := models.ModelPrimary
	primary, err := s.store.QueryEvaluated(ctx, start, &primaryType)
	if err != nil {
		return models.ABComparisonResult{}, fmt.Errorf("query primary records: %w", err)
	}
	ruleType := models.ModelRuleBased
	ruleBased, err := s.store.QueryEvaluated(ctx, start, &ruleType)
	if err != nil {
		return models.ABComparisonResult{}, fmt.Errorf("query rule-based records: %w", err)
	}

	return s.comparator.Compare(primary, ruleBased, start, end), nil
}

// RiskRankings fetches per-entity metric summaries and returns them scored
// and ranked by composite risk.
func (s *PredictorService) RiskRankings(ctx context.Context) ([]models.RiskScore, error) {
	if s.risk == nil {
		return nil, fmt.Errorf("risk scorer not configured")
	}
	if s.metricsSource == nil {
		return nil, fmt.Errorf("metrics source not configured")
	}

	end := s.now()
	summaries, err := s.metricsSource.EntitySummaries(ctx, end.Add(-s.lookback), end)
	if err != nil {
		return nil, fmt.Errorf("fetch entity summaries: %w", err)
	}
	return s.risk.Rank(summaries), nil
}

// LatencyP95 reports the current p95 prediction latency.
func (s *PredictorService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
