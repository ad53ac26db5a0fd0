package gloss

import (
	"testing"
	"time"
)

func TestTracker_ProcessedNeverExceedsTotal(t *testing.T) {
	tr := newTracker(time.Hour)
	tr.begin()
	tr.addTotal(3)
	tr.addProcessed(5)
	tr.finish()

	got := tr.snapshot()
	if got.Processed != 3 || got.Total != 3 {
		t.Fatalf("snapshot = %+v, want clamped to 3/3", got)
	}
}

func TestTracker_ActiveAcrossOverlappingRuns(t *testing.T) {
	tr := newTracker(time.Hour)
	tr.begin()
	tr.begin() // a re-scan overlapping the initial pass
	tr.addTotal(4)
	tr.addProcessed(2)

	if got := tr.snapshot(); !got.Active {
		t.Fatalf("snapshot = %+v, want active while runs remain", got)
	}
	tr.finish()
	if got := tr.snapshot(); !got.Active {
		t.Fatalf("snapshot = %+v, want active with one run left", got)
	}
	tr.addProcessed(2)
	tr.finish()
	if got := tr.snapshot(); got.Active {
		t.Fatalf("snapshot = %+v, want idle after completion", got)
	}
}

func TestTracker_LingerThenReset(t *testing.T) {
	tr := newTracker(20 * time.Millisecond)
	tr.begin()
	tr.addTotal(2)
	tr.addProcessed(2)
	tr.finish()

	// The completed record stays readable through the linger.
	if got := tr.snapshot(); got.Processed != 2 || got.Total != 2 {
		t.Fatalf("snapshot = %+v, want 2/2 before the linger expires", got)
	}
	eventually(t, time.Second, func() bool {
		got := tr.snapshot()
		return got.Processed == 0 && got.Total == 0 && !got.Active
	}, "record never reset after the linger")
}

func TestTracker_NewRunCancelsPendingReset(t *testing.T) {
	tr := newTracker(30 * time.Millisecond)
	tr.begin()
	tr.addTotal(2)
	tr.addProcessed(2)
	tr.finish() // schedules the reset

	tr.begin() // a fresh run arrives before the linger expires
	tr.addTotal(1)
	time.Sleep(80 * time.Millisecond)
	if got := tr.snapshot(); got.Total != 3 {
		t.Fatalf("snapshot = %+v, want the pending reset cancelled", got)
	}
}

func TestTracker_TeardownAfterCancel(t *testing.T) {
	tr := newTracker(20 * time.Millisecond)
	tr.begin()
	tr.addTotal(6)
	tr.addProcessed(2)
	tr.finish()
	tr.teardown() // user cancel: record lingers, then clears

	eventually(t, time.Second, func() bool {
		got := tr.snapshot()
		return got.Processed == 0 && got.Total == 0
	}, "record never cleared after cancellation")
}
