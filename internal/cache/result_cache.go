package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pulsestack/pulse-predictor/internal/models"
)

// ComputeFunc produces a prediction result on a cache miss.
type ComputeFunc func(ctx context.Context) (models.PredictionResult, error)

type entry struct {
	value     models.PredictionResult
	expiresAt time.Time
}

// ResultCache stores prediction results with a TTL and deduplicates
// concurrent computations per key: while one computation for a key is in
// flight, every other caller for that key waits on it and receives the same
// result. Failed computations are never stored, so one bad upstream call
// cannot poison later requests.
type ResultCache struct {
	ttl   time.Duration
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time
}

// NewResultCache constructs a cache with the given TTL. TTL is required.
func NewResultCache(ttl time.Duration) (*ResultCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	return &ResultCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}, nil
}

// GetOrCompute returns the fresh cached value for key, or runs compute
// exactly once for all concurrent callers of the same key. The shared
// computation is detached from any single caller's cancellation so an
// abandoned request still populates the cache for the remaining waiters.
// The hit return reports whether the value came from the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (models.PredictionResult, bool, error) {
	if compute == nil {
		return models.PredictionResult{}, false, errors.New("compute function is required")
	}

	if value, ok := c.lookup(key); ok {
		return value, true, nil
	}

	detached := context.WithoutCancel(ctx)
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A concurrent flight may have stored the value between our miss
		// and acquiring the flight.
		if value, ok := c.lookup(key); ok {
			return value, nil
		}

		value, err := compute(detached)
		if err != nil {
			return models.PredictionResult{}, err
		}

		c.store(key, value)
		return value, nil
	})
	if err != nil {
		return models.PredictionResult{}, false, err
	}
	return result.(models.PredictionResult), false, nil
}

// Len reports the number of live entries, expired ones excluded.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	live := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			live++
		}
	}
	return live
}

// Clear drops every entry. Exposed for tests and operational resets.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *ResultCache) lookup(key string) (models.PredictionResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return models.PredictionResult{}, false
	}
	if !c.now().Before(e.expiresAt) {
		// Lazy eviction: expired entries are removed on the next lookup.
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return models.PredictionResult{}, false
	}
	return e.value, true
}

func (c *ResultCache) store(key string, value models.PredictionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}
