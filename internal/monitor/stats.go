package monitor

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// MonitoringCounter is the fixed-size record spec §9 ("counter-as-record")
// asks for in place of the source's dynamic mapping: named integer fields
// plus an explicit element-wise merge, so summability doesn't require a map.
type MonitoringCounter struct {
	SUM int

	NotUpdated          int
	Cached              int
	Empty               int
	Failed              int
	Updated             int
	Skipped             int
	Timeout             int
	Cancelled           int
	UnknownError        int
	TimeoutUnknownError int
	Deferred            int
	Resubmitted         int
}

// MergeFrom adds other's fields into c element-wise.
func (c *MonitoringCounter) MergeFrom(other MonitoringCounter) {
	c.SUM += other.SUM
	c.NotUpdated += other.NotUpdated
	c.Cached += other.Cached
	c.Empty += other.Empty
	c.Failed += other.Failed
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Timeout += other.Timeout
	c.Cancelled += other.Cancelled
	c.UnknownError += other.UnknownError
	c.TimeoutUnknownError += other.TimeoutUnknownError
	c.Deferred += other.Deferred
	c.Resubmitted += other.Resubmitted
}

// outcome tags, one terminal method per §4.A's taxonomy. cached and empty
// each also increment not_updated, and deferred/resubmitted double-count
// into SUM alongside the terminal outcomes — preserved as-is per spec §9
// Open Question (a).

func (c *MonitoringCounter) NotUpdatedOutcome()          { c.NotUpdated++; c.SUM++ }
func (c *MonitoringCounter) CachedOutcome()              { c.Cached++; c.NotUpdatedOutcome() }
func (c *MonitoringCounter) EmptyOutcome()               { c.Empty++; c.NotUpdatedOutcome() }
func (c *MonitoringCounter) FailedOutcome()              { c.Failed++; c.SUM++ }
func (c *MonitoringCounter) UpdatedOutcome()             { c.Updated++; c.SUM++ }
func (c *MonitoringCounter) SkippedOutcome()             { c.Skipped++; c.SUM++ }
func (c *MonitoringCounter) TimeoutOutcome()             { c.Timeout++; c.SUM++ }
func (c *MonitoringCounter) CancelledOutcome()           { c.Cancelled++; c.SUM++ }
func (c *MonitoringCounter) UnknownErrorOutcome()        { c.UnknownError++; c.SUM++ }
func (c *MonitoringCounter) TimeoutUnknownErrorOutcome() { c.TimeoutUnknownError++; c.SUM++ }
func (c *MonitoringCounter) DeferredOutcome()            { c.Deferred++; c.SUM++ }
func (c *MonitoringCounter) ResubmittedOutcome()         { c.Resubmitted++; c.SUM++ }

// stat renders the same comma-joined summary line the source produces,
// only including non-zero optional tags in the fixed order spec §4.A names.
func (c MonitoringCounter) stat() string {
	parts := []string{
		fmt.Sprintf("updated(%d)", c.Updated),
		fmt.Sprintf("not updated(%d, including %d cached and %d empty)", c.NotUpdated, c.Cached, c.Empty),
	}
	optional := []struct {
		label string
		n     int
	}{
		{"fetch failed", c.Failed},
		{"skipped", c.Skipped},
		{"cancelled", c.Cancelled},
		{"unknown error", c.UnknownError},
		{"timeout", c.Timeout},
		{"timeout w/ unknown error", c.TimeoutUnknownError},
		{"deferred", c.Deferred},
		{"resubmitted", c.Resubmitted},
	}
	for _, o := range optional {
		if o.n != 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", o.label, o.n))
		}
	}
	return strings.Join(parts, ", ")
}

// StatsAggregator holds the tier-1 (accumulating) and tier-2 (per-tick)
// counters spec §4.A describes and logs periodic summaries.
type StatsAggregator struct {
	mu sync.Mutex

	tier1 MonitoringCounter
	tier2 MonitoringCounter

	tier1Last time.Time
	tier2Last time.Time

	tier1Period time.Duration

	logger *log.Logger
}

// NewStatsAggregator builds a StatsAggregator summarizing tier-1 totals
// every tier1Period.
func NewStatsAggregator(tier1Period time.Duration, logger *log.Logger) *StatsAggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &StatsAggregator{tier1Period: tier1Period, logger: logger}
}

func (s *StatsAggregator) mutate(fn func(*MonitoringCounter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.tier2)
}

func (s *StatsAggregator) NotUpdated() {
	s.mutate((*MonitoringCounter).NotUpdatedOutcome)
	Outcomes.WithLabelValues("not_updated").Inc()
}
func (s *StatsAggregator) Cached() {
	s.mutate((*MonitoringCounter).CachedOutcome)
	Outcomes.WithLabelValues("cached").Inc()
}
func (s *StatsAggregator) Empty() {
	s.mutate((*MonitoringCounter).EmptyOutcome)
	Outcomes.WithLabelValues("empty").Inc()
}
func (s *StatsAggregator) Failed() {
	s.mutate((*MonitoringCounter).FailedOutcome)
	Outcomes.WithLabelValues("failed").Inc()
}
func (s *StatsAggregator) Updated() {
	s.mutate((*MonitoringCounter).UpdatedOutcome)
	Outcomes.WithLabelValues("updated").Inc()
}
func (s *StatsAggregator) Skipped() {
	s.mutate((*MonitoringCounter).SkippedOutcome)
	Outcomes.WithLabelValues("skipped").Inc()
}
func (s *StatsAggregator) Timeout() {
	s.mutate((*MonitoringCounter).TimeoutOutcome)
	Outcomes.WithLabelValues("timeout").Inc()
}
func (s *StatsAggregator) Cancelled() {
	s.mutate((*MonitoringCounter).CancelledOutcome)
	Outcomes.WithLabelValues("cancelled").Inc()
}
func (s *StatsAggregator) UnknownError() {
	s.mutate((*MonitoringCounter).UnknownErrorOutcome)
	Outcomes.WithLabelValues("unknown_error").Inc()
}
func (s *StatsAggregator) TimeoutUnknownError() {
	s.mutate((*MonitoringCounter).TimeoutUnknownErrorOutcome)
	Outcomes.WithLabelValues("timeout_unknown_error").Inc()
}
func (s *StatsAggregator) Deferred() {
	s.mutate((*MonitoringCounter).DeferredOutcome)
	Outcomes.WithLabelValues("deferred").Inc()
}
func (s *StatsAggregator) Resubmitted() {
	s.mutate((*MonitoringCounter).ResubmittedOutcome)
	Outcomes.WithLabelValues("resubmitted").Inc()
}

// Snapshot returns a copy of the current tier-2 counters, for tests and
// debug endpoints.
func (s *StatsAggregator) Snapshot() MonitoringCounter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier2
}

// PrintSummary is driven by PeriodicDriver on every tick (spec §4.H.1): it
// rolls tier-2 into tier-1 and logs both on their respective cadences.
func (s *StatsAggregator) PrintSummary(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tier1Last.IsZero() {
		s.tier1Last = now
		s.tier2Last = now
		return
	}

	tier2Diff := now.Sub(s.tier2Last).Round(time.Second)
	s.summarize(s.tier2, tier2Diff, false)
	s.tier2Last = now
	s.tier1.MergeFrom(s.tier2)
	s.tier2 = MonitoringCounter{}

	tier1Diff := now.Sub(s.tier1Last).Round(time.Second)
	if tier1Diff < s.tier1Period {
		return
	}
	s.summarize(s.tier1, tier1Diff, true)
	s.tier1Last = now
	s.tier1 = MonitoringCounter{}
}

func (s *StatsAggregator) summarize(c MonitoringCounter, diff time.Duration, tier1 bool) {
	if c.SUM == 0 {
		s.logger.Printf("No monitoring task in the past %s.", diff)
		return
	}

	warn := c.Cancelled != 0 || c.UnknownError != 0 || c.Timeout != 0 || c.TimeoutUnknownError != 0
	prefix := "DEBUG"
	if tier1 {
		prefix = "INFO"
	}
	if warn {
		prefix = "WARN"
	}
	s.logger.Printf("%s: Summary of %d monitoring tasks in the past %s: %s", prefix, c.SUM, diff, c.stat())
}
