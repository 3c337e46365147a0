package monitor

import (
	"log"
	"testing"
	"time"
)

func newTestStateTable(minimalInterval time.Duration) *FeedStateTable {
	return NewFeedStateTable(minimalInterval, NewSubmissionQueue(), NewStatsAggregator(10*time.Minute, log.New(logDiscard{}, "", 0)), log.New(logDiscard{}, "", 0))
}

func TestSubmitEnqueuesFromEmpty(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	if got := tbl.Submit(1); got != SubmitEnqueued {
		t.Errorf("Submit() = %v, want SubmitEnqueued", got)
	}
	if got := tbl.Get(1); got != StateLocked {
		t.Errorf("state = %v, want StateLocked", got)
	}
}

func TestSubmitDefersWhenAlreadyLocked(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.Submit(1)
	if got := tbl.Submit(1); got != SubmitDeferred {
		t.Errorf("Submit() = %v, want SubmitDeferred", got)
	}
	if got := tbl.Get(1); got != StateLocked|StateDeferred {
		t.Errorf("state = %v, want StateLocked|StateDeferred", got)
	}
}

func TestSubmitDeferredResubmitThenSubmitAgainDefers(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.MarkInProgress(1)
	tbl.Submit(1)                 // InProgress -> InProgress|Deferred, SubmitDeferred
	tbl.Erase(1, StateInProgress) // erased == Deferred -> re-lock, EraseResubmit

	if got := tbl.Submit(1); got != SubmitDeferred {
		t.Errorf("Submit() = %v, want SubmitDeferred (still locked from the resubmit)", got)
	}
}

func TestMinimalIntervalAtOrBelowOneMinuteDisablesLocking(t *testing.T) {
	tbl := newTestStateTable(time.Minute)
	tbl.Submit(1)
	if got := tbl.Get(1); got != StateEmpty {
		t.Errorf("state = %v, want StateEmpty (locking disabled)", got)
	}
}

func TestMarkInProgressSetsFlagIndependentOfLock(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.MarkInProgress(5)
	if got := tbl.Get(5); got != StateInProgress {
		t.Errorf("state = %v, want StateInProgress", got)
	}
}

func TestEraseClearsOnlyRequestedFlag(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.Submit(1)
	tbl.MarkInProgress(1)
	if got := tbl.Erase(1, StateInProgress); got != EraseCleared {
		t.Errorf("Erase() = %v, want EraseCleared", got)
	}
	if got := tbl.Get(1); got != StateLocked {
		t.Errorf("state = %v, want StateLocked remaining", got)
	}
}

func TestEraseResubmitsWhenRemainderIsExactlyDeferred(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.MarkInProgress(1)
	tbl.Submit(1) // InProgress -> InProgress|Deferred, SubmitDeferred

	if got := tbl.Erase(1, StateInProgress); got != EraseResubmit {
		t.Errorf("Erase() = %v, want EraseResubmit", got)
	}
	if got := tbl.Get(1); got != StateLocked {
		t.Errorf("state = %v, want StateLocked after resubmit re-lock", got)
	}
}

func TestEraseDeletesEntryWhenFullyCleared(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	tbl.Submit(1)
	tbl.Erase(1, StateAll)
	if got := tbl.Get(1); got != StateEmpty {
		t.Errorf("state = %v, want StateEmpty", got)
	}
}

func TestEraseOnUnknownFeedLogsAndReturnsCleared(t *testing.T) {
	tbl := newTestStateTable(time.Hour)
	if got := tbl.Erase(999, StateInProgress); got != EraseCleared {
		t.Errorf("Erase() = %v, want EraseCleared", got)
	}
}

func TestLockExpiryResubmitsWhenWorkerFinishedWhileStillLocked(t *testing.T) {
	queue := NewSubmissionQueue()
	stats := NewStatsAggregator(10*time.Minute, log.New(logDiscard{}, "", 0))
	tbl := NewFeedStateTable(time.Hour, queue, stats, log.New(logDiscard{}, "", 0))

	tbl.Submit(1)                 // -> LOCKED
	tbl.MarkInProgress(1)         // -> LOCKED|IN_PROGRESS
	tbl.Submit(1)                 // -> LOCKED|IN_PROGRESS|DEFERRED, SubmitDeferred
	tbl.Erase(1, StateInProgress) // worker finishes -> LOCKED|DEFERRED remains

	if got := tbl.Get(1); got != StateLocked|StateDeferred {
		t.Fatalf("state before lock expiry = %v, want LOCKED|DEFERRED", got)
	}

	tbl.onLockExpiry(1) // simulates the auto-clear timer firing

	if got := tbl.Get(1); got != StateLocked {
		t.Errorf("state after lock expiry = %v, want StateLocked (re-armed by resubmit)", got)
	}
	id, ok := queue.Get()
	if !ok || id != 1 {
		t.Errorf("queue.Get() = (%d, %v), want (1, true) — feed should be resubmitted, not dropped", id, ok)
	}
	if stats.Snapshot().Resubmitted != 1 {
		t.Errorf("Resubmitted = %d, want 1", stats.Snapshot().Resubmitted)
	}
}
