package monitor

import (
	"strconv"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
)

var cfCacheStatusesHonored = map[string]bool{
	"HIT": true, "MISS": true, "EXPIRED": true, "REVALIDATED": true,
}

// nextCheckFromServerCache implements spec §4.F.1: return the first
// applicable hint, else the zero time (meaning "clear any previous
// next_check_time").
func nextCheckFromServerCache(wf *fetch.WebFeed, ttlFloor time.Duration) time.Time {
	wr := wf.WebResponse
	now := wr.Now

	if !wr.Expires.IsZero() && cfCacheStatusesHonored[wf.CFCacheStatus] && wr.Expires.After(now) {
		return wr.Expires
	}

	if wf.RSSD == nil {
		return time.Time{}
	}
	meta := wf.RSSD.Feed
	if meta.Generator != "RSSHub" || meta.Updated == "" {
		return time.Time{}
	}

	ttlSeconds, ok := rsshubTTLSeconds(meta, wr)
	if !ok || time.Duration(ttlSeconds)*time.Second <= ttlFloor {
		return time.Time{}
	}

	updated := parseFeedTime(meta.Updated)
	if updated.IsZero() {
		return time.Time{}
	}
	next := updated.Add(time.Duration(ttlSeconds) * time.Second)
	if next.After(now) {
		return next
	}
	return time.Time{}
}

// rsshubTTLSeconds resolves RSSHub's ttl field (minutes, decimal string),
// falling back to the response's max-age when ttl is absent or malformed.
func rsshubTTLSeconds(meta fetch.FeedMeta, wr fetch.WebResponse) (int, bool) {
	if meta.TTLMinutes != "" {
		if minutes, err := strconv.Atoi(meta.TTLMinutes); err == nil {
			return minutes * 60, true
		}
	}
	if wr.MaxAgeSecs > 0 {
		return wr.MaxAgeSecs, true
	}
	return 0, false
}

// parseFeedTime parses a channel-level "updated" value, trying RFC-2822
// then RFC-3339/ISO-8601, mirroring fetch's own entry-time parsing.
func parseFeedTime(value string) time.Time {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
