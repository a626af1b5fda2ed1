package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsestack/pulse-predictor/internal/budget"
	"github.com/pulsestack/pulse-predictor/internal/cache"
	"github.com/pulsestack/pulse-predictor/internal/config"
	"github.com/pulsestack/pulse-predictor/internal/engine"
	"github.com/pulsestack/pulse-predictor/internal/evaluation"
	"github.com/pulsestack/pulse-predictor/internal/metrics"
	"github.com/pulsestack/pulse-predictor/internal/repo"
	"github.com/pulsestack/pulse-predictor/internal/services"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting pulse-predictor", slog.String("metrics_address", cfg.Server.MetricsAddress))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	resultCache, err := cache.NewResultCache(cfg.Cache.TTL)
	if err != nil {
		logger.Error("failed to build result cache", slog.Any("error", err))
		os.Exit(1)
	}
	tracker, err := budget.New(cfg.Budget.MaxDailyRequests, cfg.Budget.MaxDailyCostCents)
	if err != nil {
		logger.Error("failed to build budget tracker", slog.Any("error", err))
		os.Exit(1)
	}
	rules, err := engine.NewRuleBasedEstimator(
		cfg.Rules.WarningErrorRate,
		cfg.Rules.CriticalErrorRate,
		cfg.Rules.Confidence,
		cfg.Rules.TimeHorizonHours,
		logger,
	)
	if err != nil {
		logger.Error("failed to build rule-based estimator", slog.Any("error", err))
		os.Exit(1)
	}

	var primary engine.PredictionClient
	if cfg.Primary.Enabled {
		primary = repo.NewPrimaryClient(
			cfg.Primary.BaseURL,
			cfg.Primary.PredictPath,
			cfg.Primary.Timeout,
			cfg.Primary.RequestsPerSecond,
		)
	}

	store := repo.NewMemoryRecordStore()
	orchestrator, err := engine.NewOrchestrator(engine.OrchestratorConfig{
		PrimaryEnabled:           cfg.Primary.Enabled,
		FallbackEnabled:          cfg.Primary.FallbackEnabled,
		PrimaryTimeout:           cfg.Primary.Timeout,
		CostPerThousandCharCents: cfg.Primary.CostPerThousandCharCents,
	}, logger, resultCache, tracker, primary, rules, store)
	if err != nil {
		logger.Error("failed to build orchestrator", slog.Any("error", err))
		os.Exit(1)
	}

	evaluator := evaluation.NewEvaluator(logger)
	drift, err := evaluation.NewDriftDetector(cfg.Evaluation.DriftThreshold, logger)
	if err != nil {
		logger.Error("failed to build drift detector", slog.Any("error", err))
		os.Exit(1)
	}
	comparator := evaluation.NewComparator(evaluator, logger)

	risk, err := engine.NewRiskScorer(cfg.Risk.Weights, cfg.Risk.Thresholds)
	if err != nil {
		logger.Error("failed to build risk scorer", slog.Any("error", err))
		os.Exit(1)
	}

	metricsSource := repo.NewMetricsSourceClient(
		cfg.Metrics.BaseURL,
		cfg.Metrics.SummariesPath,
		cfg.Metrics.WindowPath,
		cfg.Metrics.Timeout,
	)

	lookback := time.Duration(cfg.Evaluation.LookbackDays) * 24 * time.Hour
	service, err := services.NewPredictorService(
		logger, orchestrator, evaluator, drift, comparator, risk, store, metricsSource, lookback,
	)
	if err != nil {
		logger.Error("failed to build predictor service", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	// The evaluation cycle is scheduled here so the core stays
	// schedule-agnostic and directly testable.
	go func() {
		ticker := time.NewTicker(cfg.Evaluation.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := service.RunEvaluationCycle(ctx); err != nil {
					logger.Error("evaluation cycle failed", slog.Any("error", err))
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancel()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pulse-predictor stopped")
}
