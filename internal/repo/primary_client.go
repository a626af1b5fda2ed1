package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/pulsestack/pulse-predictor/internal/models"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

// maxRetryElapsed bounds the retry budget for one primary call. The
// orchestrator's per-request timeout still applies through the context.
const maxRetryElapsed = 20 * time.Second

// PrimaryClient talks to the generative prediction service over HTTP. Calls
// are rate limited client-side and retried with exponential backoff on
// transient failures; any terminal failure surfaces as one uniform error for
// the orchestrator to treat as a primary-path failure.
type PrimaryClient struct {
	baseURL     string
	predictPath string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewPrimaryClient constructs a client for the configured endpoint.
// requestsPerSecond bounds outbound call rate; zero disables limiting.
func NewPrimaryClient(baseURL, predictPath string, timeout time.Duration, requestsPerSecond float64) *PrimaryClient {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &PrimaryClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		predictPath: predictPath,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
	}
}

type predictPayload struct {
	MerchantID        string          `json:"merchant_id"`
	TimeHorizonHours  int             `json:"time_horizon_hours"`
	Samples           []samplePayload `json:"samples"`
	HistoricalContext []string        `json:"historical_context,omitempty"`
}

type samplePayload struct {
	Timestamp           string  `json:"timestamp"`
	Batches             int     `json:"batches"`
	Errors              int     `json:"errors"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}

type predictResponse struct {
	Status          string   `json:"status"`
	Confidence      float64  `json:"confidence"`
	TimeHorizon     int      `json:"time_horizon_hours"`
	Findings        []string `json:"findings"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
	Reasoning       string   `json:"reasoning"`
}

// Predict submits the metrics window and returns the structured prediction.
func (c *PrimaryClient) Predict(ctx context.Context, req models.PredictionRequest) (models.PredictionResult, error) {
	if c == nil || c.baseURL == "" {
		return models.PredictionResult{}, utils.NewAppError("primary.predict", "prediction service not configured", nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.PredictionResult{}, utils.NewAppError("primary.predict", "rate limiter wait", err)
		}
	}

	payload := predictPayload{
		MerchantID:        req.MerchantID,
		TimeHorizonHours:  req.TimeHorizonHours,
		HistoricalContext: req.HistoricalContext,
		Samples:           make([]samplePayload, 0, len(req.Window.Samples)),
	}
	for _, s := range req.Window.Samples {
		payload.Samples = append(payload.Samples, samplePayload{
			Timestamp:           s.Timestamp.Format(time.RFC3339),
			Batches:             s.Batches,
			Errors:              s.Errors,
			AvgProcessingTimeMs: s.AvgProcessingTimeMs,
		})
	}

	var response predictResponse
	operation := func() error {
		return c.postJSON(ctx, c.predictURL(), payload, &response)
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = maxRetryElapsed

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return models.PredictionResult{}, utils.NewAppError("primary.predict", "prediction request failed", err)
	}

	status := models.HealthStatus(strings.ToUpper(strings.TrimSpace(response.Status)))
	if !models.ValidStatus(status) {
		return models.PredictionResult{}, utils.NewAppError("primary.predict", fmt.Sprintf("unrecognised status %q", response.Status), nil)
	}

	result := models.PredictionResult{
		Status:           status,
		Confidence:       clampConfidence(response.Confidence),
		TimeHorizonHours: response.TimeHorizon,
		Findings:         response.Findings,
		RiskFactors:      response.RiskFactors,
		Recommendations:  response.Recommendations,
		Reasoning:        response.Reasoning,
	}
	if result.TimeHorizonHours == 0 {
		result.TimeHorizonHours = req.TimeHorizonHours
	}
	return result, nil
}

func (c *PrimaryClient) predictURL() string {
	return resolvePath(c.baseURL, c.predictPath)
}

func (c *PrimaryClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return backoff.Permanent(fmt.Errorf("empty endpoint"))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("prediction service returned %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not heal on retry.
			return backoff.Permanent(err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func resolvePath(baseURL, p string) string {
	if baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
