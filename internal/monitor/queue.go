package monitor

import "sync"

// SubmissionQueue is the unbounded, FIFO feed-id queue spec §4.C describes.
// Its producers are PeriodicDriver (after FeedStateTable.Submit) and the
// resubmissions from MonitorWorker and FeedStateTable's lock-expiry timer;
// the unbounded queue backed by a growable slice applies no backpressure (§5).
type SubmissionQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []int
	closed  bool
}

// NewSubmissionQueue builds an empty queue.
func NewSubmissionQueue() *SubmissionQueue {
	q := &SubmissionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PutNowait appends feedID to the tail of the queue without blocking.
func (q *SubmissionQueue) PutNowait(feedID int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, feedID)
	q.cond.Signal()
}

// Get blocks until an item is available or the queue is closed, returning
// (0, false) in the latter case.
func (q *SubmissionQueue) Get() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return 0, false
	}
	feedID := q.items[0]
	q.items = q.items[1:]
	return feedID, true
}

// Close unblocks any Get call in progress; subsequent Get calls return
// immediately with ok=false.
func (q *SubmissionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current queue depth, for debug introspection.
func (q *SubmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
