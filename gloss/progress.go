package gloss

import (
	"sync"
	"time"
)

// ProgressState is the aggregate progress record shared by every running
// scheduling pass. Total only grows within a run; Processed never exceeds
// Total.
type ProgressState struct {
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
	Active    bool `json:"active"`
}

// tracker accumulates progress across overlapping passes (the initial pass
// and mutation-triggered re-scans can run at the same time). All mutation
// is mutex-serialised; accumulation order across interleaved passes is
// nondeterministic.
type tracker struct {
	mu        sync.Mutex
	processed int
	total     int
	runs      int
	timer     *time.Timer
	linger    time.Duration
}

func newTracker(linger time.Duration) *tracker {
	return &tracker{linger: linger}
}

// begin marks a scheduling pass active and cancels any pending teardown.
func (t *tracker) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// finish marks a pass done; when it was the last one and all discovered
// work is processed, teardown is scheduled after the linger.
func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runs > 0 {
		t.runs--
	}
	t.maybeTeardownLocked()
}

// addTotal grows the work count. New work discovered mid-run adds to it;
// it never shrinks below processed.
func (t *tracker) addTotal(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += n
}

// addProcessed advances by a completed batch's element count, clamped so
// processed ≤ total always holds.
func (t *tracker) addProcessed(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed += n
	if t.processed > t.total {
		t.processed = t.total
	}
	t.maybeTeardownLocked()
}

// snapshot returns the current record. Active means at least one pass is
// running or work remains outstanding.
func (t *tracker) snapshot() ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ProgressState{
		Processed: t.processed,
		Total:     t.total,
		Active:    t.runs > 0 || (t.total > 0 && t.processed < t.total),
	}
}

// reset zeroes the record immediately (SPA navigation, new run).
func (t *tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// teardown schedules an unconditional reset after the linger. Used by the
// cancel action so the indicator stays readable for a moment.
func (t *tracker) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scheduleResetLocked()
}

func (t *tracker) maybeTeardownLocked() {
	if t.runs == 0 && t.total > 0 && t.processed == t.total {
		t.scheduleResetLocked()
	}
}

func (t *tracker) scheduleResetLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.linger, t.reset)
}

func (t *tracker) resetLocked() {
	t.processed = 0
	t.total = 0
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
