package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes mirrors StatsAggregator's tag taxonomy (spec §4.A) as a
// Prometheus counter so the same terminal outcomes are queryable externally,
// not just through the periodic log summary.
var Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedmonitor_check_outcomes_total",
	Help: "Total feed checks by terminal outcome tag",
}, []string{"outcome"})

// QueueDepth tracks SubmissionQueue's current length (spec §4.C), sampled by
// PeriodicDriver on each tick.
var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "feedmonitor_queue_depth",
	Help: "Current number of feed ids waiting in the submission queue",
})

// FeedsWithFlag tracks how many feeds currently carry each TaskState bit
// (spec §4.B), sampled by PeriodicDriver on each tick.
var FeedsWithFlag = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "feedmonitor_feed_state_count",
	Help: "Current number of feeds with the given state flag set",
}, []string{"flag"})

// Sample publishes the state table's current flag counts, for PeriodicDriver
// to call once per tick.
func (t *FeedStateTable) Sample() {
	t.mu.Lock()
	defer t.mu.Unlock()

	var locked, inProgress, deferred int
	for _, s := range t.state {
		if s&StateLocked != 0 {
			locked++
		}
		if s&StateInProgress != 0 {
			inProgress++
		}
		if s&StateDeferred != 0 {
			deferred++
		}
	}
	FeedsWithFlag.WithLabelValues("locked").Set(float64(locked))
	FeedsWithFlag.WithLabelValues("in_progress").Set(float64(inProgress))
	FeedsWithFlag.WithLabelValues("deferred").Set(float64(deferred))
}

// Sample publishes the queue's current depth.
func (q *SubmissionQueue) Sample() {
	QueueDepth.Set(float64(q.Len()))
}
