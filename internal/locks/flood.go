// Package locks implements the Locks external collaborator: the per-user
// flood-wait gate and the per-user unsub-all coalescing lock (spec §6, §9).
package locks

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FloodLimiter tracks, per user, whether delivery is currently under a
// flood-wait. UpdateDetector consults Locked and skips a feed's check when
// every subscriber is flood-limited. DeliveryFanout neither calls MarkFlooded
// on a failed send nor consults Locked (spec glossary: "flood-wait lock").
type FloodLimiter struct {
	mu       sync.Mutex
	limiters map[int]*rate.Limiter
}

// NewFloodLimiter builds an empty per-user flood-wait tracker.
func NewFloodLimiter() *FloodLimiter {
	return &FloodLimiter{limiters: make(map[int]*rate.Limiter)}
}

// MarkFlooded records that userID has just hit a flood-wait of the given
// duration in seconds; Locked returns true until that many seconds have
// passed.
func (f *FloodLimiter) MarkFlooded(userID int, seconds int) {
	if seconds <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiters[userID] = rate.NewLimiter(rate.Every(time.Duration(seconds)*time.Second), 1)
	f.limiters[userID].Allow() // consume the only token so Locked reports true immediately
}

// Locked reports whether userID is currently under a flood-wait.
func (f *FloodLimiter) Locked(userID int) bool {
	f.mu.Lock()
	limiter, ok := f.limiters[userID]
	f.mu.Unlock()
	if !ok {
		return false
	}
	return limiter.Tokens() < 1
}
