package main

import (
	"encoding/json"
	"hash/fnv"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type batchSample struct {
	Timestamp           time.Time `json:"timestamp"`
	Batches             int       `json:"batches"`
	Errors              int       `json:"errors"`
	AvgProcessingTimeMs float64   `json:"avg_processing_time_ms"`
}

type entitySummary struct {
	EntityID                string  `json:"entity_id"`
	ErrorRate               float64 `json:"error_rate"`
	AvgProcessingTimeMs     float64 `json:"avg_processing_time_ms"`
	ErrorRateChangePct      float64 `json:"error_rate_change_pct"`
	ProcessingTimeChangePct float64 `json:"processing_time_change_pct"`
	VolumeChangePct         float64 `json:"volume_change_pct"`
	TotalBatches            int     `json:"total_batches"`
	TotalErrors             int     `json:"total_errors"`
}

type windowRequest struct {
	EntityID string `json:"entity_id"`
}

type predictRequest struct {
	MerchantID       string        `json:"merchant_id"`
	TimeHorizonHours int           `json:"time_horizon_hours"`
	Samples          []batchSample `json:"samples"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/metrics/summaries", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"summaries": []entitySummary{
				{EntityID: "merchant-quiet", ErrorRate: 0.004, AvgProcessingTimeMs: 620, VolumeChangePct: 3, TotalBatches: 4100, TotalErrors: 16},
				{EntityID: "merchant-warm", ErrorRate: 0.031, AvgProcessingTimeMs: 1350, ErrorRateChangePct: 28, TotalBatches: 2700, TotalErrors: 84},
				{EntityID: "merchant-hot", ErrorRate: 0.094, AvgProcessingTimeMs: 4200, ErrorRateChangePct: 140, ProcessingTimeChangePct: 85, VolumeChangePct: -45, TotalBatches: 900, TotalErrors: 85},
			},
		})
	})

	mux.HandleFunc("/api/v1/metrics/window", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req windowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"samples": syntheticWindow(req.EntityID)})
	})

	mux.HandleFunc("/api/v1/predict", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, syntheticPrediction(req))
	})

	logger := log.New(log.Writer(), "upstream-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// syntheticWindow derives a stable per-entity error profile so repeated
// requests for the same merchant look consistent.
func syntheticWindow(entityID string) []batchSample {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	rng := rand.New(rand.NewSource(int64(h.Sum32())))

	errorRate := 0.002 + rng.Float64()*0.08
	baseTime := 500.0 + rng.Float64()*2000.0

	samples := make([]batchSample, 0, 24)
	for i := 24; i > 0; i-- {
		batches := 80 + rng.Intn(120)
		samples = append(samples, batchSample{
			Timestamp:           time.Now().Add(-time.Duration(i) * time.Hour).UTC().Truncate(time.Second),
			Batches:             batches,
			Errors:              int(float64(batches) * errorRate),
			AvgProcessingTimeMs: baseTime * (0.9 + rng.Float64()*0.2),
		})
	}
	return samples
}

func syntheticPrediction(req predictRequest) map[string]any {
	totalBatches, totalErrors := 0, 0
	for _, s := range req.Samples {
		totalBatches += s.Batches
		totalErrors += s.Errors
	}
	errorRate := 0.0
	if totalBatches > 0 {
		errorRate = float64(totalErrors) / float64(totalBatches)
	}

	status := "HEALTHY"
	reasoning := "error rate within normal bounds"
	switch {
	case errorRate >= 0.05:
		status = "CRITICAL"
		reasoning = "sustained error rate above critical threshold"
	case errorRate >= 0.02:
		status = "WARNING"
		reasoning = "error rate trending above warning threshold"
	}

	return map[string]any{
		"status":             status,
		"confidence":         0.7 + errorRate,
		"time_horizon_hours": req.TimeHorizonHours,
		"findings":           []string{reasoning},
		"reasoning":          reasoning,
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
