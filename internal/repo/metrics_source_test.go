package repo

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestMetricsSourceEntitySummaries(t *testing.T) {
	client := NewMetricsSourceClient("https://metrics.example.com", "/api/v1/summaries", "/api/v1/window", time.Second)
	client.httpClient = stubHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/summaries" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"summaries": []map[string]any{
				{
					"entity_id":              "merchant-1",
					"error_rate":             0.04,
					"avg_processing_time_ms": 1200.0,
					"error_rate_change_pct":  35.0,
					"total_batches":          500,
					"total_errors":           20,
				},
				{"entity_id": "merchant-2", "error_rate": 0.01, "total_batches": 300, "total_errors": 3},
			},
		}), nil
	})

	summaries, err := client.EntitySummaries(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].EntityID != "merchant-1" || summaries[0].ErrorRate != 0.04 {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
	if summaries[0].ErrorRateChangePct != 35.0 {
		t.Fatalf("expected change pct carried through, got %f", summaries[0].ErrorRateChangePct)
	}
}

func TestMetricsSourceFetchWindowParsesTimestamps(t *testing.T) {
	client := NewMetricsSourceClient("https://metrics.example.com", "/api/v1/summaries", "/api/v1/window", time.Second)
	client.httpClient = stubHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/window" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"samples": []map[string]any{
				{"timestamp": "2026-02-10T08:00:00Z", "batches": 120, "errors": 3, "avg_processing_time_ms": 850.0},
				{"timestamp": "2026-02-10T09:00:00Z", "batches": 140, "errors": 1, "avg_processing_time_ms": 790.0},
			},
		}), nil
	})

	window, err := client.FetchWindow(context.Background(), "merchant-1", time.Now().Add(-2*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window.EntityID != "merchant-1" {
		t.Fatalf("expected entity id preserved, got %s", window.EntityID)
	}
	if len(window.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(window.Samples))
	}
	want := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	if !window.Samples[0].Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, window.Samples[0].Timestamp)
	}
	if got := window.ErrorRate(); got != 4.0/260.0 {
		t.Fatalf("unexpected error rate %f", got)
	}
}

func TestMetricsSourceFetchWindowRejectsBadTimestamp(t *testing.T) {
	client := NewMetricsSourceClient("https://metrics.example.com", "/api/v1/summaries", "/api/v1/window", time.Second)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"samples": []map[string]any{{"timestamp": "yesterday", "batches": 10, "errors": 0}},
		}), nil
	})

	if _, err := client.FetchWindow(context.Background(), "merchant-1", time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
}

func TestMetricsSourceSurfacesServerErrors(t *testing.T) {
	client := NewMetricsSourceClient("https://metrics.example.com", "/api/v1/summaries", "/api/v1/window", time.Second)
	client.httpClient = stubHTTPClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusInternalServerError, map[string]any{}), nil
	})

	if _, err := client.EntitySummaries(context.Background(), time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}
