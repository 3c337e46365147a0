package monitor

import (
	"context"
	"log"

	"github.com/jeffreyp/feedmonitor/internal/store"
)

// Hooks bundles the external-utility collaborators spec §6 pins as opaque
// interfaces: update_interval, migrate_to_new_url, deactivate_feed,
// unsub_all_and_leave_chat. This core only ever calls them; it never owns
// their effects on Sub records or transport-side chat membership, matching
// spec §1's Non-goals (no user command surface, no persistence of feed/sub
// semantics beyond the named Feed fields in §3).
type Hooks struct {
	// UpdateInterval lets surrounding logic extend/shrink Feed.Interval when
	// a feed turns out to have no active subscribers (§4.F step 2).
	UpdateInterval func(feed *store.Feed)

	// MigrateToNewURL is invoked when the effective fetched URL differs from
	// feed.Link (§4.F step 6); it may persist the new link and return either
	// the same feed or a replacement to keep operating on.
	MigrateToNewURL func(ctx context.Context, feed *store.Feed, newURL string) (*store.Feed, error)

	// DeactivateFeed marks a feed inactive after sustained failure (§4.F
	// step 5, 100-error threshold).
	DeactivateFeed func(ctx context.Context, feed *store.Feed) error

	// UnsubAllAndLeaveChat removes every subscription for a blocked user and
	// leaves their chat (§4.G "Blocked-user handler").
	UnsubAllAndLeaveChat func(ctx context.Context, userID int) error
}

// DefaultHooks returns a Hooks value whose implementations only log, except
// MigrateToNewURL, which also sets feed.Link to the new URL and returns the
// same feed. Suitable when the surrounding system has no richer behavior to
// plug in.
func DefaultHooks() Hooks {
	return Hooks{
		UpdateInterval: func(feed *store.Feed) {
			log.Printf("feed %d has no active subscribers; interval unchanged", feed.ID)
		},
		MigrateToNewURL: func(ctx context.Context, feed *store.Feed, newURL string) (*store.Feed, error) {
			log.Printf("feed %d migrated from %s to %s", feed.ID, feed.Link, newURL)
			feed.Link = newURL
			return feed, nil
		},
		DeactivateFeed: func(ctx context.Context, feed *store.Feed) error {
			log.Printf("feed %d deactivated after %d consecutive errors", feed.ID, feed.ErrorCount)
			return nil
		},
		UnsubAllAndLeaveChat: func(ctx context.Context, userID int) error {
			log.Printf("user %d unsubscribed from all feeds and removed", userID)
			return nil
		},
	}
}
