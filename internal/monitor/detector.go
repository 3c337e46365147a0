package monitor

import (
	"context"
	"log"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/config"
	"github.com/jeffreyp/feedmonitor/internal/fetch"
	"github.com/jeffreyp/feedmonitor/internal/hashing"
	"github.com/jeffreyp/feedmonitor/internal/locks"
	"github.com/jeffreyp/feedmonitor/internal/store"
)

// UpdateDetector implements spec §4.F: the per-feed check algorithm. One
// instance is shared across every MonitorWorker invocation.
type UpdateDetector struct {
	Store   store.FeedStore
	Fetcher fetch.Fetcher
	Flood   *locks.FloodLimiter
	Fanout  *DeliveryFanout
	Stats   *StatsAggregator
	Hooks   Hooks
	Config  *config.Config
	Logger  *log.Logger

	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

// Check runs the full algorithm for feed, recording exactly one terminal
// stat outcome and persisting whatever fields ended up dirty.
func (d *UpdateDetector) Check(ctx context.Context, feed *store.Feed) error {
	now := d.now()

	if feed.HasNextCheckTime() && now.Before(feed.NextCheckTime) {
		d.Stats.Skipped()
		return nil
	}

	subs, err := d.Store.ActiveSubs(feed.ID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		d.logger().Printf("feed %d (%s) has no active subscribers", feed.ID, feed.Link)
		d.Hooks.UpdateInterval(feed)
		d.Stats.Skipped()
		return nil
	}
	if d.allFlooded(subs) {
		d.Stats.Skipped()
		return nil
	}

	ifModifiedSince := feed.LastModified
	if ifModifiedSince == "" && !feed.UpdatedAt.IsZero() {
		ifModifiedSince = feed.UpdatedAt.UTC().Format(time.RFC1123Z)
	}

	wf, err := d.Fetcher.FeedGet(ctx, feed.Link, feed.ETag, ifModifiedSince)
	if err != nil {
		return err
	}

	return d.handle(ctx, feed, subs, wf, now)
}

// handle carries out the try/finally-shaped status handling of spec §4.F
// step 5-6: the deferred persistence runs exactly once, on every path,
// mirroring the original's finally block.
func (d *UpdateDetector) handle(ctx context.Context, feed *store.Feed, subs []*store.Sub, wf *fetch.WebFeed, now time.Time) error {
	var (
		dirty            store.UpdateFields
		noError          = true
		newNextCheckTime time.Time
	)

	defer func() {
		if noError {
			if feed.ErrorCount > 0 {
				feed.ErrorCount = 0
				dirty.ErrorCount = true
			}
			if wf.URL != "" && wf.URL != feed.Link {
				if migrated, err := d.Hooks.MigrateToNewURL(ctx, feed, wf.URL); err != nil {
					d.logger().Printf("failed to migrate feed %d to new url %s: %v", feed.ID, wf.URL, err)
				} else if migrated != nil {
					// Adopt the migrated identity/link but keep every field this
					// check already mutated on feed (title, etag, entry hashes);
					// migrate_to_new_url is only authoritative over Link/ID.
					feed.ID = migrated.ID
					feed.Link = migrated.Link
				}
			}
		}
		if !newNextCheckTime.Equal(feed.NextCheckTime) {
			feed.NextCheckTime = newNextCheckTime
			dirty.NextCheckTime = true
		}
		if dirty.Any() {
			if err := d.Store.Save(feed, dirty); err != nil {
				d.logger().Printf("failed to persist feed %d: %v", feed.ID, err)
			}
		}
	}()

	if wf.Status == 304 {
		d.logger().Printf("fetched (not updated, cached): %s", feed.Link)
		d.Stats.Cached()
		return nil
	}

	if wf.Err != nil {
		noError = false
		d.handleFetchFailure(ctx, feed, subs, wf, &dirty, &newNextCheckTime, now)
		return nil
	}

	wr := wf.WebResponse
	if wr.ETag != "" && wr.ETag != feed.ETag {
		feed.ETag = wr.ETag
		dirty.ETag = true
	}

	newNextCheckTime = nextCheckFromServerCache(wf, d.ttlFloor())

	if wf.RSSD == nil || len(wf.RSSD.Entries) == 0 {
		d.logger().Printf("fetched (not updated, empty): %s", feed.Link)
		d.Stats.Empty()
		return nil
	}

	title := fetch.NormalizeTitle(wf.RSSD.Feed.Title)
	if title != "" && title != feed.Title {
		d.logger().Printf("feed title changed (%s -> %s): %s", feed.Title, title, feed.Link)
		feed.Title = title
		dirty.Title = true
	}

	newHashes, updatedEntries := hashing.CalculateUpdate(feed.EntryHashes, wf.RSSD.Entries)
	if len(updatedEntries) == 0 {
		d.logger().Printf("fetched (not updated): %s", feed.Link)
		d.Stats.NotUpdated()
		return nil
	}

	d.logger().Printf("updated: %s", feed.Link)
	feed.LastModified = wr.LastModified
	feed.EntryHashes = hashing.Retain(newHashes, len(wf.RSSD.Entries), d.hashRetentionMin())
	dirty.LastModified = true
	dirty.EntryHashes = true

	if err := d.Fanout.DeliverAll(ctx, feed, subs, reversed(updatedEntries)); err != nil {
		return err
	}
	d.Stats.Updated()
	return nil
}

// handleFetchFailure implements spec §4.F step 5's error branch: counter
// bump, periodic warning, auto-deactivation at the stop threshold, and
// back-off scheduling in between.
func (d *UpdateDetector) handleFetchFailure(ctx context.Context, feed *store.Feed, subs []*store.Sub, wf *fetch.WebFeed, dirty *store.UpdateFields, newNextCheckTime *time.Time, now time.Time) {
	cfg := d.cfg()
	feed.ErrorCount++
	dirty.ErrorCount = true

	if feed.ErrorCount%cfg.DeferWarnThreshold == 0 {
		d.logger().Printf("fetch failed (%dth retry, %v): %s", feed.ErrorCount, wf.Err, feed.Link)
	}

	if feed.ErrorCount >= cfg.DeferStopThreshold {
		d.logger().Printf("feed %d deactivated due to too many (%d) errors (current: %v): %s",
			feed.ID, feed.ErrorCount, wf.Err, feed.Link)
		if err := d.Hooks.DeactivateFeed(ctx, feed); err != nil {
			d.logger().Printf("failed to deactivate feed %d: %v", feed.ID, err)
		}
		d.Fanout.DeliverDeactivationNotice(ctx, feed, subs, feed.ErrorCount)
		d.Stats.Failed()
		return
	}

	if feed.ErrorCount >= cfg.BackoffThreshold {
		interval := feed.Interval
		if interval <= 0 {
			interval = int(cfg.DefaultInterval.Minutes())
		}
		factor := feed.ErrorCount/10 + 1
		if factor > cfg.BackoffMaxFactor {
			factor = cfg.BackoffMaxFactor
		}
		cappedInterval := cfg.BackoffCapMinutes
		if interval < cappedInterval {
			cappedInterval = interval
		}
		if candidate := cappedInterval * factor; candidate > interval {
			*newNextCheckTime = now.Add(time.Duration(candidate) * time.Minute)
		}
	}

	d.logger().Printf("fetched (failed, %dth retry, %v): %s", feed.ErrorCount, wf.Err, feed.Link)
	d.Stats.Failed()
}

func (d *UpdateDetector) allFlooded(subs []*store.Sub) bool {
	for _, sub := range subs {
		if !d.Flood.Locked(sub.UserID) {
			return false
		}
	}
	return true
}

func (d *UpdateDetector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *UpdateDetector) cfg() *config.Config {
	if d.Config != nil {
		return d.Config
	}
	return config.Get()
}

func (d *UpdateDetector) ttlFloor() time.Duration {
	return time.Duration(d.cfg().TTLFloorSeconds) * time.Second
}

func (d *UpdateDetector) hashRetentionMin() int {
	return d.cfg().HashRetentionMin
}

func (d *UpdateDetector) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// reversed returns entries in reverse order (oldest first), per spec §4.F
// step 7; CalculateUpdate yields updated entries in feed (newest-first)
// order.
func reversed(entries []fetch.Entry) []fetch.Entry {
	out := make([]fetch.Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}
