package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// ErrRecordNotFound signals an unknown prediction record id.
var ErrRecordNotFound = errors.New("prediction record not found")

// MemoryRecordStore is an in-memory audit store for prediction records. It
// backs tests and local runs; durable retention is an external concern.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]models.PredictionRecord
}

// NewMemoryRecordStore constructs an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]models.PredictionRecord)}
}

// Record stores one prediction record. Ids must be unique.
func (s *MemoryRecordStore) Record(_ context.Context, record models.PredictionRecord) error {
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("record %s already exists", record.ID)
	}
	s.records[record.ID] = record
	return nil
}

// RecordOutcome sets the observed outcome for a prediction exactly once and
// derives correctness from the predicted status.
func (s *MemoryRecordStore) RecordOutcome(_ context.Context, id string, outcome models.HealthStatus) error {
	if !models.ValidStatus(outcome) {
		return fmt.Errorf("invalid outcome %q", outcome)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if record.ActualOutcome != nil {
		return fmt.Errorf("outcome already recorded for %s", id)
	}

	record.ActualOutcome = &outcome
	correct := record.Result.Status == outcome
	record.IsCorrect = &correct
	s.records[id] = record
	return nil
}

// QueryEvaluated returns records with a recorded outcome predicted at or
// after since, optionally filtered by model type, ordered by prediction time.
func (s *MemoryRecordStore) QueryEvaluated(_ context.Context, since time.Time, modelFilter *models.ModelType) ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PredictionRecord
	for _, record := range s.records {
		if !record.Evaluated() {
			continue
		}
		if record.PredictionTime.Before(since) {
			continue
		}
		if modelFilter != nil && record.ModelType != *modelFilter {
			continue
		}
		out = append(out, record)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PredictionTime.Before(out[j].PredictionTime)
	})
	return out, nil
}

// Len reports how many records are stored.
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
