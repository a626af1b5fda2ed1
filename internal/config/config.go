package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// weightTolerance is the allowed deviation of the risk-weight sum from 1.0.
const weightTolerance = 1e-3

// Config captures the settings required to boot the predictor engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Primary    PrimaryConfig    `yaml:"primary"`
	Budget     BudgetConfig     `yaml:"budget"`
	Cache      CacheConfig      `yaml:"cache"`
	Rules      RulesConfig      `yaml:"rules"`
	Risk       RiskConfig       `yaml:"risk"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Metrics    MetricsConfig    `yaml:"metricsSource"`
}

// ServerConfig controls the operational listeners.
type ServerConfig struct {
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// PrimaryConfig configures the generative prediction client and its routing.
type PrimaryConfig struct {
	Enabled                  bool          `yaml:"enabled"`
	FallbackEnabled          bool          `yaml:"fallbackEnabled"`
	BaseURL                  string        `yaml:"baseURL"`
	PredictPath              string        `yaml:"predictPath"`
	Timeout                  time.Duration `yaml:"timeout"`
	RequestsPerSecond        float64       `yaml:"requestsPerSecond"`
	CostPerThousandCharCents int           `yaml:"costPerThousandCharCents"`
}

// BudgetConfig bounds daily primary-model usage.
type BudgetConfig struct {
	MaxDailyRequests  int `yaml:"maxDailyRequests"`
	MaxDailyCostCents int `yaml:"maxDailyCostCents"`
}

// CacheConfig controls the in-process prediction result cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// RulesConfig parameterises the rule-based estimator.
type RulesConfig struct {
	WarningErrorRate  float64 `yaml:"warningErrorRate"`
	CriticalErrorRate float64 `yaml:"criticalErrorRate"`
	Confidence        float64 `yaml:"confidence"`
	TimeHorizonHours  int     `yaml:"timeHorizonHours"`
}

// RiskConfig holds scoring weights and per-factor thresholds.
type RiskConfig struct {
	Weights    RiskWeights    `yaml:"weights"`
	Thresholds RiskThresholds `yaml:"thresholds"`
}

// RiskWeights distributes the composite score across factors. The four
// weights must sum to 1.0 within tolerance.
type RiskWeights struct {
	Error  float64 `yaml:"error"`
	Time   float64 `yaml:"time"`
	Trend  float64 `yaml:"trend"`
	Volume float64 `yaml:"volume"`
}

// Band is a warning/critical threshold pair for one factor.
type Band struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// RiskThresholds holds the normalisation bands per risk factor.
type RiskThresholds struct {
	ErrorRate        Band `yaml:"errorRate"`
	ProcessingTimeMs Band `yaml:"processingTimeMs"`
	TrendPct         Band `yaml:"trendPct"`
	VolumePct        Band `yaml:"volumePct"`
}

// EvaluationConfig controls the evaluation cycle and drift detection.
type EvaluationConfig struct {
	Interval       time.Duration `yaml:"interval"`
	LookbackDays   int           `yaml:"lookbackDays"`
	DriftThreshold float64       `yaml:"driftThreshold"`
}

// MetricsConfig configures the upstream metrics source.
type MetricsConfig struct {
	BaseURL       string        `yaml:"baseURL"`
	SummariesPath string        `yaml:"summariesPath"`
	WindowPath    string        `yaml:"windowPath"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Load initialises Config from a YAML file plus environment overrides, then
// validates it. Prediction-domain settings carry no in-code defaults; a
// missing threshold, weight, budget, or TTL is a startup error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PULSE_PREDICTOR_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// defaultConfig seeds only operational settings. Everything the prediction
// core depends on stays zero so Validate can reject incomplete configs.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

// Validate fails fast on incomplete or inconsistent prediction settings so
// misconfiguration never surfaces at request time.
func (c *Config) Validate() error {
	var problems []string

	if c.Budget.MaxDailyRequests <= 0 {
		problems = append(problems, "budget.maxDailyRequests must be set and positive")
	}
	if c.Budget.MaxDailyCostCents <= 0 {
		problems = append(problems, "budget.maxDailyCostCents must be set and positive")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "cache.ttl must be set and positive")
	}
	if c.Rules.WarningErrorRate <= 0 {
		problems = append(problems, "rules.warningErrorRate must be set and positive")
	}
	if c.Rules.CriticalErrorRate <= 0 {
		problems = append(problems, "rules.criticalErrorRate must be set and positive")
	}
	if c.Rules.WarningErrorRate > 0 && c.Rules.CriticalErrorRate > 0 && c.Rules.WarningErrorRate >= c.Rules.CriticalErrorRate {
		problems = append(problems, "rules.warningErrorRate must be below rules.criticalErrorRate")
	}
	if c.Rules.Confidence <= 0 || c.Rules.Confidence > 1 {
		problems = append(problems, "rules.confidence must be in (0,1]")
	}
	if c.Rules.TimeHorizonHours <= 0 {
		problems = append(problems, "rules.timeHorizonHours must be set and positive")
	}
	if c.Evaluation.Interval <= 0 {
		problems = append(problems, "evaluation.interval must be set and positive")
	}
	if c.Evaluation.DriftThreshold <= 0 || c.Evaluation.DriftThreshold >= 1 {
		problems = append(problems, "evaluation.driftThreshold must be in (0,1)")
	}
	if c.Evaluation.LookbackDays <= 0 {
		problems = append(problems, "evaluation.lookbackDays must be set and positive")
	}
	if err := c.Risk.Weights.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	for _, entry := range []struct {
		name string
		band Band
	}{
		{"risk.thresholds.errorRate", c.Risk.Thresholds.ErrorRate},
		{"risk.thresholds.processingTimeMs", c.Risk.Thresholds.ProcessingTimeMs},
		{"risk.thresholds.trendPct", c.Risk.Thresholds.TrendPct},
		{"risk.thresholds.volumePct", c.Risk.Thresholds.VolumePct},
	} {
		if entry.band.Warning <= 0 || entry.band.Critical <= 0 {
			problems = append(problems, entry.name+" warning/critical must be set and positive")
			continue
		}
		if entry.band.Warning >= entry.band.Critical {
			problems = append(problems, entry.name+" warning must be below critical")
		}
	}
	if c.Metrics.BaseURL == "" {
		problems = append(problems, "metricsSource.baseURL must be set")
	}
	if c.Metrics.SummariesPath == "" || c.Metrics.WindowPath == "" {
		problems = append(problems, "metricsSource.summariesPath and metricsSource.windowPath must be set")
	}
	if c.Metrics.Timeout <= 0 {
		problems = append(problems, "metricsSource.timeout must be set and positive")
	}
	if c.Primary.Enabled {
		if c.Primary.BaseURL == "" {
			problems = append(problems, "primary.baseURL must be set when primary.enabled")
		}
		if c.Primary.Timeout <= 0 {
			problems = append(problems, "primary.timeout must be set and positive when primary.enabled")
		}
		if c.Primary.CostPerThousandCharCents <= 0 {
			problems = append(problems, "primary.costPerThousandCharCents must be set and positive when primary.enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks that the weights are non-negative and sum to 1.0 within
// tolerance.
func (w RiskWeights) Validate() error {
	sum := w.Error + w.Time + w.Trend + w.Volume
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("risk.weights must sum to 1.0 (got %.4f)", sum)
	}
	if w.Error < 0 || w.Time < 0 || w.Trend < 0 || w.Volume < 0 {
		return errors.New("risk.weights must be non-negative")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PULSE_PREDICTOR_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("PULSE_PREDICTOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_PREDICTOR_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PULSE_PREDICTOR_PRIMARY_URL"); v != "" {
		cfg.Primary.BaseURL = v
	}
	if v := os.Getenv("PULSE_PREDICTOR_PRIMARY_ENABLED"); v != "" {
		cfg.Primary.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PULSE_PREDICTOR_FALLBACK_ENABLED"); v != "" {
		cfg.Primary.FallbackEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PULSE_PREDICTOR_METRICS_SOURCE_URL"); v != "" {
		cfg.Metrics.BaseURL = v
	}
	if v := os.Getenv("PULSE_PREDICTOR_MAX_DAILY_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Budget.MaxDailyRequests = n
		}
	}
	if v := os.Getenv("PULSE_PREDICTOR_MAX_DAILY_COST_CENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Budget.MaxDailyCostCents = n
		}
	}
	if v := os.Getenv("PULSE_PREDICTOR_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
}
