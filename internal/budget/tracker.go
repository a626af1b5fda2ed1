package budget

import (
	"fmt"
	"sync"
	"time"
)

// window is the rolling budget period, anchored at the first recorded
// request after a reset rather than wall-clock midnight.
const window = 24 * time.Hour

// Usage is a point-in-time snapshot of budget consumption.
type Usage struct {
	Requests    int
	CostCents   int
	WindowStart time.Time
}

// Tracker bounds daily primary-model usage by request count and cost. All
// mutation happens under a single mutex so increment-and-check never loses
// an update or a window reset under concurrent callers.
type Tracker struct {
	mu sync.Mutex

	maxRequests  int
	maxCostCents int

	requests    int
	costCents   int
	windowStart time.Time

	now func() time.Time
}

// New constructs a Tracker. Both limits are required.
func New(maxDailyRequests, maxDailyCostCents int) (*Tracker, error) {
	if maxDailyRequests <= 0 {
		return nil, fmt.Errorf("maxDailyRequests must be positive, got %d", maxDailyRequests)
	}
	if maxDailyCostCents <= 0 {
		return nil, fmt.Errorf("maxDailyCostCents must be positive, got %d", maxDailyCostCents)
	}
	return &Tracker{
		maxRequests:  maxDailyRequests,
		maxCostCents: maxDailyCostCents,
		now:          time.Now,
	}, nil
}

// CanMakeRequest reports whether another primary request fits the current
// window's budget.
func (t *Tracker) CanMakeRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindowLocked()
	return t.requests < t.maxRequests && t.costCents < t.maxCostCents
}

// RecordRequest charges one request and its estimated cost against the
// current window. The first request after a reset anchors the window.
func (t *Tracker) RecordRequest(estimatedCostCents int) {
	if estimatedCostCents < 0 {
		estimatedCostCents = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindowLocked()
	if t.windowStart.IsZero() {
		t.windowStart = t.now()
	}
	t.requests++
	t.costCents += estimatedCostCents
}

// Snapshot returns current consumption for reporting.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindowLocked()
	return Usage{Requests: t.requests, CostCents: t.costCents, WindowStart: t.windowStart}
}

// Reset clears all counters and the window anchor. Exposed for tests and
// operational overrides.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *Tracker) rollWindowLocked() {
	if t.windowStart.IsZero() {
		return
	}
	if t.now().Sub(t.windowStart) >= window {
		t.resetLocked()
	}
}

func (t *Tracker) resetLocked() {
	t.requests = 0
	t.costCents = 0
	t.windowStart = time.Time{}
}
