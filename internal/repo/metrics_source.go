package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

// MetricsSourceClient reads aggregated batch metrics from the upstream
// metrics service. It is read-only: the predictor never writes back.
type MetricsSourceClient struct {
	baseURL       string
	summariesPath string
	windowPath    string
	httpClient    *http.Client
}

// NewMetricsSourceClient constructs a client targeting the configured
// metrics service.
func NewMetricsSourceClient(baseURL, summariesPath, windowPath string, timeout time.Duration) *MetricsSourceClient {
	return &MetricsSourceClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		summariesPath: summariesPath,
		windowPath:    windowPath,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// EntitySummaries fetches per-entity metric rollups for the given window.
func (c *MetricsSourceClient) EntitySummaries(ctx context.Context, start, end time.Time) ([]models.EntityMetricsSummary, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("metrics source not configured")
	}

	payload := map[string]any{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}

	var response struct {
		Summaries []struct {
			EntityID                string  `json:"entity_id"`
			ErrorRate               float64 `json:"error_rate"`
			AvgProcessingTimeMs     float64 `json:"avg_processing_time_ms"`
			ErrorRateChangePct      float64 `json:"error_rate_change_pct"`
			ProcessingTimeChangePct float64 `json:"processing_time_change_pct"`
			VolumeChangePct         float64 `json:"volume_change_pct"`
			TotalBatches            int     `json:"total_batches"`
			TotalErrors             int     `json:"total_errors"`
		} `json:"summaries"`
	}

	if err := c.postJSON(ctx, resolvePath(c.baseURL, c.summariesPath), payload, &response); err != nil {
		return nil, fmt.Errorf("metrics source summaries request failed: %w", err)
	}

	summaries := make([]models.EntityMetricsSummary, 0, len(response.Summaries))
	for _, s := range response.Summaries {
		summaries = append(summaries, models.EntityMetricsSummary{
			EntityID:                s.EntityID,
			ErrorRate:               s.ErrorRate,
			AvgProcessingTimeMs:     s.AvgProcessingTimeMs,
			ErrorRateChangePct:      s.ErrorRateChangePct,
			ProcessingTimeChangePct: s.ProcessingTimeChangePct,
			VolumeChangePct:         s.VolumeChangePct,
			TotalBatches:            s.TotalBatches,
			TotalErrors:             s.TotalErrors,
		})
	}
	return summaries, nil
}

// FetchWindow fetches the raw batch samples for one entity over the window.
func (c *MetricsSourceClient) FetchWindow(ctx context.Context, entityID string, start, end time.Time) (models.MetricsWindow, error) {
	if c == nil || c.baseURL == "" {
		return models.MetricsWindow{}, fmt.Errorf("metrics source not configured")
	}

	payload := map[string]any{
		"entity_id": entityID,
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
	}

	var response struct {
		Samples []struct {
			Timestamp           string  `json:"timestamp"`
			Batches             int     `json:"batches"`
			Errors              int     `json:"errors"`
			AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
		} `json:"samples"`
	}

	if err := c.postJSON(ctx, resolvePath(c.baseURL, c.windowPath), payload, &response); err != nil {
		return models.MetricsWindow{}, fmt.Errorf("metrics source window request failed: %w", err)
	}

	window := models.MetricsWindow{EntityID: entityID, Samples: make([]models.BatchSample, 0, len(response.Samples))}
	for _, s := range response.Samples {
		ts, err := utils.ParseRFC3339(s.Timestamp)
		if err != nil {
			return models.MetricsWindow{}, fmt.Errorf("metrics source window sample: %w", err)
		}
		window.Samples = append(window.Samples, models.BatchSample{
			Timestamp:           ts,
			Batches:             s.Batches,
			Errors:              s.Errors,
			AvgProcessingTimeMs: s.AvgProcessingTimeMs,
		})
	}
	return window, nil
}

func (c *MetricsSourceClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics source returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
