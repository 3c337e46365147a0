package monitor

import "errors"

// Sentinel errors classifying MonitorWorker/UpdateDetector outcomes that
// aren't already recorded as a terminal stat by the detector itself.
// Namespaced "monitor: ..." per the pack's errors.go convention.
var (
	// ErrCancelled marks a detector run that ended because its context was
	// cancelled cooperatively (not a timeout).
	ErrCancelled = errors.New("monitor: detector run cancelled")

	// ErrFeedNotFound names the case where a submitted feed id no longer
	// resolves in the store. MonitorWorker.Run returns nothing; it logs that
	// case and clears the feed's state.
	ErrFeedNotFound = errors.New("monitor: feed not found")
)
