package monitor

import (
	"context"
	"log"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/store"
)

// Scheduler is the external collaborator spec §6 names `EffectiveTasks`: it
// decides which feed ids are due on a given tick. The monitor core owns no
// scheduling policy of its own.
type Scheduler interface {
	GetTasks(ctx context.Context) ([]int, error)
}

// PeriodicDriver implements spec §4.H: on every external tick it prints the
// rolling summary, asks Scheduler which feed ids are due, resolves them, and
// submits each to the FeedStateTable, enqueuing the ones Submit accepts.
type PeriodicDriver struct {
	Scheduler Scheduler
	Store     store.FeedStore
	States    *FeedStateTable
	Queue     *SubmissionQueue
	Stats     *StatsAggregator
	Interval  time.Duration
	Logger    *log.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Run blocks, ticking every d.Interval, until ctx is cancelled. Grounded on
// the teacher's schedulerLoop ticker-plus-select idiom.
func (d *PeriodicDriver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *PeriodicDriver) tick(ctx context.Context) {
	d.Stats.PrintSummary(d.now())
	d.States.Sample()
	d.Queue.Sample()

	ids, err := d.Scheduler.GetTasks(ctx)
	if err != nil {
		d.logger().Printf("failed to query due feed ids: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	feeds, err := d.Store.FilterIDs(ids)
	if err != nil {
		d.logger().Printf("failed to resolve %d due feed ids: %v", len(ids), err)
		return
	}

	for _, feed := range feeds {
		switch d.States.Submit(feed.ID) {
		case SubmitEnqueued:
			d.Queue.PutNowait(feed.ID)
		case SubmitDeferred:
			d.Stats.Deferred()
		}
	}
}

func (d *PeriodicDriver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *PeriodicDriver) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}
