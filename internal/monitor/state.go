package monitor

import (
	"log"
	"sync"
	"time"
)

// TaskState is the per-feed flag set spec §4.B describes: it simulates a
// lock well enough under cooperative scheduling, but a preemptive runtime
// (every Go goroutine scheduler) needs real mutual exclusion across its
// entire read-modify-write region (spec §5, §9 "bitflag state vs. async
// lock"). FeedStateTable below supplies that mutex.
type TaskState int

const (
	StateEmpty      TaskState = 0
	StateLocked     TaskState = 1 << 0
	StateInProgress TaskState = 1 << 1
	StateDeferred   TaskState = 1 << 2

	// StateAll clears every bit in one Erase call, for the "feed id no
	// longer resolves in the store" short-circuit (spec §4.E).
	StateAll TaskState = StateLocked | StateInProgress | StateDeferred
)

// FeedStateTable is the process-wide per-feed state spec §4.B names. All
// mutation happens under mu, held only across the synchronous region that
// mutates the map — never across I/O (spec §5's "Atomicity" rule).
type FeedStateTable struct {
	mu    sync.Mutex
	state map[int]TaskState

	minimalInterval time.Duration
	logger          *log.Logger

	queue *SubmissionQueue
	stats *StatsAggregator
}

// NewFeedStateTable builds an empty table. minimalInterval <= time.Minute
// disables the auto-clear timer per spec §4.B ("minimal_interval <= 1 ⇒
// locking is meaningless"). queue and stats are the same collaborators a
// MonitorWorker resubmits through; the auto-clear timer needs them for the
// same reason worker.go's eraseAndMaybeResubmit does (see lockLocked).
func NewFeedStateTable(minimalInterval time.Duration, queue *SubmissionQueue, stats *StatsAggregator, logger *log.Logger) *FeedStateTable {
	if logger == nil {
		logger = log.Default()
	}
	return &FeedStateTable{
		state:           make(map[int]TaskState),
		minimalInterval: minimalInterval,
		queue:           queue,
		stats:           stats,
		logger:          logger,
	}
}

// SubmitResult reports what Submit decided, so callers (PeriodicDriver) know
// whether to enqueue the feed id or record a deferred/resubmitted stat.
type SubmitResult int

const (
	SubmitEnqueued SubmitResult = iota
	SubmitDeferred
)

// Submit implements spec §4.B.1: enqueue if no flag is set, else set
// DEFERRED without enqueuing (P2). The "deferred task never resubmitted"
// anomaly (§9 Open Question (b)) is preserved: a state that is exactly
// DEFERRED falls through and is treated as emptied (lock reapplied,
// enqueued) without being reported as SubmitDeferred.
func (t *FeedStateTable) Submit(feedID int) SubmitResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.state[feedID]
	if current == StateDeferred {
		t.logger.Printf("a deferred task was never resubmitted for feed %d, falling through", feedID)
	} else if current != StateEmpty {
		t.state[feedID] = current | StateDeferred
		return SubmitDeferred
	}

	t.lockLocked(feedID)
	return SubmitEnqueued
}

// lockLocked sets StateLocked and arms the auto-clear timer. Caller must
// hold mu.
func (t *FeedStateTable) lockLocked(feedID int) {
	if t.minimalInterval <= time.Minute {
		return
	}
	t.state[feedID] = StateLocked
	time.AfterFunc(t.minimalInterval, func() {
		t.onLockExpiry(feedID)
	})
}

// onLockExpiry is the auto-clear timer's callback. It erases StateLocked and,
// identically to worker.go's eraseAndMaybeResubmit, resubmits the feed id if
// the erase leaves the state exactly DEFERRED — otherwise a feed that came
// due again while still locked would never be enqueued again.
func (t *FeedStateTable) onLockExpiry(feedID int) {
	if t.Erase(feedID, StateLocked) == EraseResubmit {
		t.queue.PutNowait(feedID)
		t.stats.Resubmitted()
	}
}

// MarkInProgress sets the IN_PROGRESS flag, called when a MonitorWorker
// picks up a feed off the queue.
func (t *FeedStateTable) MarkInProgress(feedID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state[feedID] |= StateInProgress
}

// EraseResult reports what Erase decided, so the caller (MonitorWorker or
// the lock-expiry timer) knows whether to enqueue a resubmission.
type EraseResult int

const (
	EraseCleared EraseResult = iota
	EraseResubmit
)

// Erase implements spec §4.B.2: clear flagToErase from feedID's state; if
// the remaining state is exactly DEFERRED, treat it as a resubmission
// (P3): reapply LOCKED and report EraseResubmit so the caller enqueues the
// feed id again.
func (t *FeedStateTable) Erase(feedID int, flagToErase TaskState) EraseResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.state[feedID]
	if !ok || current == StateEmpty {
		t.logger.Printf("unexpected empty state for feed %d during erase", feedID)
		return EraseCleared
	}

	erased := current &^ flagToErase
	if erased == StateDeferred {
		t.lockLocked(feedID)
		return EraseResubmit
	}

	if erased == StateEmpty {
		delete(t.state, feedID)
	} else {
		t.state[feedID] = erased
	}
	return EraseCleared
}

// Get returns the current state for a feed id, for tests and debug
// introspection.
func (t *FeedStateTable) Get(feedID int) TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[feedID]
}
