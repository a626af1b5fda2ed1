package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Budget = BudgetConfig{MaxDailyRequests: 100, MaxDailyCostCents: 500}
	cfg.Cache = CacheConfig{TTL: 5 * time.Minute}
	cfg.Rules = RulesConfig{
		WarningErrorRate:  0.02,
		CriticalErrorRate: 0.05,
		Confidence:        0.6,
		TimeHorizonHours:  24,
	}
	cfg.Risk = RiskConfig{
		Weights: RiskWeights{Error: 0.4, Time: 0.3, Trend: 0.2, Volume: 0.1},
		Thresholds: RiskThresholds{
			ErrorRate:        Band{Warning: 0.02, Critical: 0.05},
			ProcessingTimeMs: Band{Warning: 2000, Critical: 10000},
			TrendPct:         Band{Warning: 20, Critical: 100},
			VolumePct:        Band{Warning: 30, Critical: 150},
		},
	}
	cfg.Evaluation = EvaluationConfig{Interval: time.Hour, LookbackDays: 7, DriftThreshold: 0.3}
	cfg.Metrics = MetricsConfig{
		BaseURL:       "http://localhost:8080",
		SummariesPath: "/api/v1/metrics/summaries",
		WindowPath:    "/api/v1/metrics/window",
		Timeout:       15 * time.Second,
	}
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateWeightsWithinTolerance(t *testing.T) {
	tests := []struct {
		name    string
		weights RiskWeights
		wantErr bool
	}{
		{"exact", RiskWeights{Error: 0.4, Time: 0.3, Trend: 0.2, Volume: 0.1}, false},
		{"slightly under", RiskWeights{Error: 0.399, Time: 0.3, Trend: 0.2, Volume: 0.1}, false},
		{"slightly over", RiskWeights{Error: 0.401, Time: 0.3, Trend: 0.2, Volume: 0.1}, false},
		{"far off", RiskWeights{Error: 0.2, Time: 0.3, Trend: 0.2, Volume: 0.1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Risk.Weights = tc.weights
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error for weights %+v", tc.weights)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateRejectsMissingBudget(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.MaxDailyRequests = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error for missing budget")
	}
	if !strings.Contains(err.Error(), "maxDailyRequests") {
		t.Fatalf("expected maxDailyRequests in error, got %v", err)
	}
}

func TestValidateRejectsInvertedRuleThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Rules.WarningErrorRate = 0.08
	cfg.Rules.CriticalErrorRate = 0.05
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when warning >= critical")
	}
}

func TestValidateRequiresMetricsSource(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.BaseURL = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error for missing metrics source")
	}
	if !strings.Contains(err.Error(), "metricsSource.baseURL") {
		t.Fatalf("expected metricsSource.baseURL in error, got %v", err)
	}

	cfg = validConfig()
	cfg.Metrics.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing metrics source timeout")
	}
}

func TestLoadParsesMetricsSourceSection(t *testing.T) {
	raw := `
budget:
  maxDailyRequests: 100
  maxDailyCostCents: 500
cache:
  ttl: 5m
rules:
  warningErrorRate: 0.02
  criticalErrorRate: 0.05
  confidence: 0.6
  timeHorizonHours: 24
risk:
  weights:
    error: 0.4
    time: 0.3
    trend: 0.2
    volume: 0.1
  thresholds:
    errorRate:
      warning: 0.02
      critical: 0.05
    processingTimeMs:
      warning: 2000
      critical: 10000
    trendPct:
      warning: 20
      critical: 100
    volumePct:
      warning: 30
      critical: 150
evaluation:
  interval: 1h
  lookbackDays: 7
  driftThreshold: 0.3
metricsSource:
  baseURL: "http://metrics.internal:8080"
  summariesPath: "/api/v1/metrics/summaries"
  windowPath: "/api/v1/metrics/window"
  timeout: 15s
`
	path := filepath.Join(t.TempDir(), "predictor.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Metrics.BaseURL != "http://metrics.internal:8080" {
		t.Fatalf("expected metrics source baseURL parsed, got %q", cfg.Metrics.BaseURL)
	}
	if cfg.Metrics.Timeout != 15*time.Second {
		t.Fatalf("expected metrics source timeout parsed, got %v", cfg.Metrics.Timeout)
	}
}

func TestValidatePrimaryRequiresURLWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Primary.Enabled = true
	cfg.Primary.Timeout = 5 * time.Second
	cfg.Primary.CostPerThousandCharCents = 2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for enabled primary without baseURL")
	}
	cfg.Primary.BaseURL = "http://localhost:9090"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
