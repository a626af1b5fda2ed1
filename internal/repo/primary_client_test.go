package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
	"github.com/pulsestack/pulse-predictor/internal/utils"
)

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func predictionRequest() models.PredictionRequest {
	return models.PredictionRequest{
		MerchantID:       "merchant-1",
		TimeHorizonHours: 24,
		Window: models.MetricsWindow{
			EntityID: "merchant-1",
			Samples: []models.BatchSample{
				{Timestamp: time.Unix(1_770_000_000, 0), Batches: 100, Errors: 2, AvgProcessingTimeMs: 900},
			},
		},
	}
}

func TestPrimaryClientPredictParsesResponse(t *testing.T) {
	client := NewPrimaryClient("https://predictor.example.com", "/api/v1/predict", time.Second, 0)
	client.httpClient = stubHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/predict" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var payload predictPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.MerchantID != "merchant-1" || len(payload.Samples) != 1 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"status":     "warning",
			"confidence": 0.82,
			"findings":   []string{"error rate climbing"},
			"reasoning":  "recent error-rate increase",
		}), nil
	})

	result, err := client.Predict(context.Background(), predictionRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.StatusWarning {
		t.Fatalf("expected WARNING, got %s", result.Status)
	}
	if result.Confidence != 0.82 {
		t.Fatalf("expected confidence 0.82, got %f", result.Confidence)
	}
	if result.TimeHorizonHours != 24 {
		t.Fatalf("expected horizon defaulted from request, got %d", result.TimeHorizonHours)
	}
}

func TestPrimaryClientRejectsUnknownStatus(t *testing.T) {
	client := NewPrimaryClient("https://predictor.example.com", "/api/v1/predict", time.Second, 0)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "sideways", "confidence": 0.5}), nil
	})

	_, err := client.Predict(context.Background(), predictionRequest())
	if err == nil {
		t.Fatalf("expected error for unrecognised status")
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
}

func TestPrimaryClientRetriesTransientFailures(t *testing.T) {
	attempts := 0
	client := NewPrimaryClient("https://predictor.example.com", "/api/v1/predict", time.Second, 0)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return jsonResponse(t, http.StatusServiceUnavailable, map[string]any{}), nil
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "HEALTHY", "confidence": 0.9}), nil
	})

	result, err := client.Predict(context.Background(), predictionRequest())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if result.Status != models.StatusHealthy {
		t.Fatalf("expected HEALTHY, got %s", result.Status)
	}
}

func TestPrimaryClientDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := NewPrimaryClient("https://predictor.example.com", "/api/v1/predict", time.Second, 0)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(t, http.StatusBadRequest, map[string]any{}), nil
	})

	if _, err := client.Predict(context.Background(), predictionRequest()); err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if attempts != 1 {
		t.Fatalf("expected no retry on client error, got %d attempts", attempts)
	}
}

func TestPrimaryClientHonoursContextCancellation(t *testing.T) {
	client := NewPrimaryClient("https://predictor.example.com", "/api/v1/predict", time.Second, 0)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusServiceUnavailable, map[string]any{}), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Predict(ctx, predictionRequest()); err == nil {
		t.Fatalf("expected error once context expired")
	}
}
