package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pulsestack/pulse-predictor/internal/budget"
	"github.com/pulsestack/pulse-predictor/internal/cache"
	"github.com/pulsestack/pulse-predictor/internal/metrics"
	"github.com/pulsestack/pulse-predictor/internal/models"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

// PredictionClient is the learned/generative prediction strategy. It may be
// slow or unavailable; the orchestrator treats any failure or timeout
// uniformly.
type PredictionClient interface {
	Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResult, error)
}

// Recorder hands completed predictions to the audit collaborator.
type Recorder interface {
	Record(ctx context.Context, record models.PredictionRecord) error
}

// OrchestratorConfig carries the routing toggles and primary-path settings.
type OrchestratorConfig struct {
	PrimaryEnabled           bool
	FallbackEnabled          bool
	PrimaryTimeout           time.Duration
	CostPerThousandCharCents int
}

// Orchestrator routes each prediction request through cache, budget, and the
// two strategies: cache hit returns immediately; on a miss the primary client
// runs when enabled and within budget, otherwise the rule-based estimator
// answers; a primary failure falls back to rules when fallback is enabled and
// propagates the original cause otherwise.
type Orchestrator struct {
	cfg      OrchestratorConfig
	logger   *slog.Logger
	cache    *cache.ResultCache
	budget   *budget.Tracker
	primary  PredictionClient
	rules    *RuleBasedEstimator
	recorder Recorder

	now func() time.Time
}

// NewOrchestrator wires the orchestrator. The primary client may be nil, in
// which case every request takes the rule-based path. Cache, budget tracker,
// and rule estimator are required.
func NewOrchestrator(
	cfg OrchestratorConfig,
	logger *slog.Logger,
	resultCache *cache.ResultCache,
	tracker *budget.Tracker,
	primary PredictionClient,
	rules *RuleBasedEstimator,
	recorder Recorder,
) (*Orchestrator, error) {
	if resultCache == nil {
		return nil, fmt.Errorf("result cache is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("budget tracker is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule-based estimator is required")
	}
	if cfg.PrimaryEnabled && primary == nil {
		return nil, fmt.Errorf("primary enabled but no prediction client configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		cache:    resultCache,
		budget:   tracker,
		primary:  primary,
		rules:    rules,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// Predict resolves one prediction request. Identical concurrent requests for
// the same merchant and horizon share a single computation through the cache.
func (o *Orchestrator) Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResult, error) {
	key := cacheKey(req)

	result, hit, err := o.cache.GetOrCompute(ctx, key, func(ctx context.Context) (models.PredictionResult, error) {
		return o.compute(ctx, req)
	})
	if err != nil {
		return models.PredictionResult{}, err
	}
	if hit {
		metrics.IncCacheHit()
	} else {
		metrics.IncCacheMiss()
	}
	return result, nil
}

func (o *Orchestrator) compute(ctx context.Context, req models.PredictionRequest) (models.PredictionResult, error) {
	usePrimary := o.cfg.PrimaryEnabled && o.primary != nil
	if usePrimary && !o.budget.CanMakeRequest() {
		// Budget exhaustion is a routing decision, not an error.
		metrics.IncBudgetDenied()
		o.logger.Info("daily budget exhausted, routing to rule-based estimator",
			slog.String("merchant", req.MerchantID))
		usePrimary = false
	}

	if !usePrimary {
		return o.ruleBased(ctx, req), nil
	}

	start := o.now()
	primaryCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.cfg.PrimaryTimeout > 0 {
		primaryCtx, cancel = context.WithTimeout(ctx, o.cfg.PrimaryTimeout)
	}
	result, err := o.primary.Predict(primaryCtx, req)
	cancel()
	elapsed := o.now().Sub(start)

	if err != nil {
		// A failed invocation still counts against the request cap.
		o.budget.RecordRequest(0)
		metrics.ObservePrediction(string(models.ModelPrimary), metrics.OutcomeError, elapsed)
		o.record(ctx, req, models.PredictionResult{Status: models.StatusUnknown, Error: err.Error()}, models.ModelPrimary, elapsed, true)

		if !o.cfg.FallbackEnabled {
			return models.PredictionResult{}, utils.NewAppError("orchestrator.predict", "primary prediction failed", err)
		}
		o.logger.Warn("primary prediction failed, falling back to rules",
			slog.String("merchant", req.MerchantID), slog.Any("error", err))
		return o.ruleBased(ctx, req), nil
	}

	o.budget.RecordRequest(o.estimateCostCents(result))
	metrics.ObservePrediction(string(models.ModelPrimary), metrics.OutcomeSuccess, elapsed)
	o.record(ctx, req, result, models.ModelPrimary, elapsed, false)
	return result, nil
}

func (o *Orchestrator) ruleBased(ctx context.Context, req models.PredictionRequest) models.PredictionResult {
	start := o.now()
	result := o.rules.Estimate(req.Window)
	elapsed := o.now().Sub(start)

	metrics.ObservePrediction(string(models.ModelRuleBased), metrics.OutcomeSuccess, elapsed)
	o.record(ctx, req, result, models.ModelRuleBased, elapsed, false)
	return result
}

func (o *Orchestrator) record(ctx context.Context, req models.PredictionRequest, result models.PredictionResult, modelType models.ModelType, elapsed time.Duration, isError bool) {
	if o.recorder == nil {
		return
	}

	record := models.PredictionRecord{
		ID:             uuid.NewString(),
		MerchantID:     req.MerchantID,
		ModelType:      modelType,
		PredictionTime: o.now(),
		Result:         result,
		ResponseTimeMs: elapsed.Milliseconds(),
		IsError:        isError,
	}
	if err := o.recorder.Record(ctx, record); err != nil {
		o.logger.Warn("failed to record prediction", slog.String("id", record.ID), slog.Any("error", err))
	}
}

// estimateCostCents approximates primary-model cost from response size.
func (o *Orchestrator) estimateCostCents(result models.PredictionResult) int {
	chars := len(result.Reasoning) + len(result.Error)
	for _, s := range result.Findings {
		chars += len(s)
	}
	for _, s := range result.RiskFactors {
		chars += len(s)
	}
	for _, s := range result.Recommendations {
		chars += len(s)
	}

	cost := chars * o.cfg.CostPerThousandCharCents / 1000
	if cost < 1 {
		cost = 1
	}
	return cost
}

func cacheKey(req models.PredictionRequest) string {
	return fmt.Sprintf("%s:%d", req.MerchantID, req.TimeHorizonHours)
}
