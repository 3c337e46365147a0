// Package store holds the data model spec §3 describes (Feed, Sub) and the
// FeedStore external collaborator spec §6 pins as an interface. The scheduler
// core in internal/monitor treats FeedStore as a read-mostly external system;
// this package supplies that interface plus runnable backends.
package store

import "time"

// Feed is the external, read-mostly record the monitor core observes and
// selectively mutates (spec §3). Field names follow the spec's vocabulary.
type Feed struct {
	ID          int
	Link        string
	Title       string
	ETag        string
	LastModified string
	UpdatedAt   time.Time

	// EntryHashes is newest-first, per spec §3.
	EntryHashes []string

	ErrorCount int

	// NextCheckTime is the earliest time the next check may run, or the zero
	// value when unset.
	NextCheckTime time.Time

	// Interval is the desired minutes between checks; 0 means "use the
	// configured default".
	Interval int
}

// HasNextCheckTime reports whether NextCheckTime is set.
func (f *Feed) HasNextCheckTime() bool {
	return !f.NextCheckTime.IsZero()
}

// Sub links a feed to a subscriber (spec §3).
type Sub struct {
	UserID int
	FeedID int
	State  int // 1 = active, per spec §4.F.2 ("active subs (state=1)")
	Title  string
	Notify bool
	Lang   string // resolved per-sub, see DESIGN.md Open Question (c)
}

// Active reports whether the subscription is active.
func (s Sub) Active() bool {
	return s.State == 1
}

// UpdateFields names which Feed fields a Save call should persist — mirrors
// the original Python source's `update_fields` / Tortoise-ORM partial-save convention quoted
// in spec §4.F ("persist with exactly those fields").
type UpdateFields struct {
	ETag          bool
	LastModified  bool
	UpdatedAt     bool
	EntryHashes   bool
	ErrorCount    bool
	NextCheckTime bool
	Title         bool
}

// Any reports whether at least one field is marked dirty.
func (u UpdateFields) Any() bool {
	return u.ETag || u.LastModified || u.UpdatedAt || u.EntryHashes ||
		u.ErrorCount || u.NextCheckTime || u.Title
}

// FeedStore is the external collaborator spec §6 names "FeedStore":
// get_by_id, filter_ids, feed.save(update_fields), feed.subs.filter(state=1).
type FeedStore interface {
	GetByID(id int) (*Feed, error)
	FilterIDs(ids []int) ([]*Feed, error)
	Save(feed *Feed, fields UpdateFields) error
	ActiveSubs(feedID int) ([]*Sub, error)
	AllSubs(feedID int) ([]*Sub, error)
	Close() error
}

// ErrNotFound is returned by GetByID when no feed exists with that id.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "store: feed not found" }
