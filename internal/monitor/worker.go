package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/store"
)

// MonitorWorker runs a single feed check with a bounded timeout, implementing
// spec §4.E. It owns no state of its own; it is handed the shared collaborators
// that cmd/monitord constructs once.
type MonitorWorker struct {
	Store    store.FeedStore
	Detector *UpdateDetector
	States   *FeedStateTable
	Queue    *SubmissionQueue
	Stats    *StatsAggregator
	Timeout  time.Duration
	Logger   *log.Logger
}

// Run resolves feedID via the store; if it no longer exists, the state
// entry is cleared entirely and nothing is scheduled. Otherwise it executes
// the check, classifying any error into the outcome taxonomy before
// unconditionally clearing IN_PROGRESS.
//
// The asyncio original disambiguates "detector finished" from "detector must
// be cancelled" via asyncio.wait's done/pending sets, because raising a bare
// timeout error there would cross a library cancellation boundary. Go has no
// such boundary concern, so the same distinction is made with a result
// channel plus context cancellation: whichever of "the detector returned" or
// "the timeout fired first" happens first is handled explicitly, without
// disturbing context.Context's own cancellation semantics.
func (w *MonitorWorker) Run(parent context.Context, feedID int) {
	w.States.MarkInProgress(feedID)

	feed, err := w.Store.GetByID(feedID)
	if err != nil {
		w.logger().Printf("feed %d not found, but it was submitted to the monitor queue", feedID)
		w.States.Erase(feedID, StateAll)
		return
	}
	defer w.eraseAndMaybeResubmit(feedID)

	ctx, cancel := context.WithTimeout(parent, w.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.runDetector(ctx, feed)
	}()

	select {
	case err := <-done:
		w.classifyNormalCompletion(feed.ID, err)
	case <-ctx.Done():
		w.logger().Printf("monitoring task timed out after %s for feed %d", w.Timeout, feed.ID)
		cancel()
		err := <-done // await the detector's unwind
		w.classifyTimeoutUnwind(feed.ID, err)
	}
}

func (w *MonitorWorker) runDetector(ctx context.Context, feed *store.Feed) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger().Printf("monitoring task panicked for feed %d: %v", feed.ID, r)
			err = errors.New("monitor: detector panicked")
		}
	}()
	return w.Detector.Check(ctx, feed)
}

func (w *MonitorWorker) classifyNormalCompletion(feedID int, err error) {
	switch {
	case err == nil:
		// terminal outcome already recorded by the detector itself.
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		w.Stats.Cancelled()
		w.logger().Printf("monitoring task failed due to cancellation for feed %d: %v", feedID, err)
	default:
		w.Stats.UnknownError()
		w.logger().Printf("monitoring task failed due to an unknown error for feed %d: %v", feedID, err)
	}
}

func (w *MonitorWorker) classifyTimeoutUnwind(feedID int, err error) {
	switch {
	case err == nil, errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		w.Stats.Timeout()
	default:
		w.Stats.TimeoutUnknownError()
		w.logger().Printf("monitoring task timed out and caused an unknown error for feed %d: %v", feedID, err)
	}
}

// eraseAndMaybeResubmit clears IN_PROGRESS; per spec §4.B's erase rule, a
// remainder of exactly DEFERRED means the feed is due for immediate
// resubmission, so it goes back on the queue rather than waiting for the
// next PeriodicDriver tick.
func (w *MonitorWorker) eraseAndMaybeResubmit(feedID int) {
	if w.States.Erase(feedID, StateInProgress) == EraseResubmit {
		w.Queue.PutNowait(feedID)
		w.Stats.Resubmitted()
	}
}

func (w *MonitorWorker) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}
