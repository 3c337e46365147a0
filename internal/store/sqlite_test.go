package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedmonitor.db")
	s, err := OpenSQLStore(path)
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSQLFeed(t *testing.T, s *SQLStore, link string) int {
	t.Helper()
	res, err := s.db.Exec(`INSERT INTO feeds (link, title) VALUES (?, ?)`, link, "seed")
	if err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("LastInsertId: %v", err)
	}
	return int(id)
}

func TestSQLStoreGetByID(t *testing.T) {
	s := newTestSQLStore(t)
	id := seedSQLFeed(t, s, "https://example.com/a")

	got, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Link != "https://example.com/a" {
		t.Errorf("Link = %q", got.Link)
	}

	if _, err := s.GetByID(id + 1000); err != ErrNotFound {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreSaveRoundTrip(t *testing.T) {
	s := newTestSQLStore(t)
	id := seedSQLFeed(t, s, "https://example.com/b")

	next := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	err := s.Save(&Feed{
		ID:            id,
		ETag:          `"abc"`,
		EntryHashes:   []string{"h1", "h2"},
		ErrorCount:    3,
		NextCheckTime: next,
	}, UpdateFields{ETag: true, EntryHashes: true, ErrorCount: true, NextCheckTime: true})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ETag != `"abc"` {
		t.Errorf("ETag = %q", got.ETag)
	}
	if len(got.EntryHashes) != 2 || got.EntryHashes[0] != "h1" {
		t.Errorf("EntryHashes = %v", got.EntryHashes)
	}
	if got.ErrorCount != 3 {
		t.Errorf("ErrorCount = %d, want 3", got.ErrorCount)
	}
	if !got.NextCheckTime.Equal(next) {
		t.Errorf("NextCheckTime = %v, want %v", got.NextCheckTime, next)
	}
}

func TestSQLStoreFilterIDs(t *testing.T) {
	s := newTestSQLStore(t)
	id1 := seedSQLFeed(t, s, "https://example.com/c1")
	id2 := seedSQLFeed(t, s, "https://example.com/c2")

	got, err := s.FilterIDs([]int{id1, id2, id1 + id2 + 1000})
	if err != nil {
		t.Fatalf("FilterIDs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestSQLStoreDueFeedIDs(t *testing.T) {
	s := newTestSQLStore(t)
	neverChecked := seedSQLFeed(t, s, "https://example.com/due-1")
	overdue := seedSQLFeed(t, s, "https://example.com/due-2")
	notYet := seedSQLFeed(t, s, "https://example.com/due-3")

	now := time.Now().UTC()
	if err := s.Save(&Feed{ID: overdue, NextCheckTime: now.Add(-time.Hour)}, UpdateFields{NextCheckTime: true}); err != nil {
		t.Fatalf("Save overdue: %v", err)
	}
	if err := s.Save(&Feed{ID: notYet, NextCheckTime: now.Add(time.Hour)}, UpdateFields{NextCheckTime: true}); err != nil {
		t.Fatalf("Save notYet: %v", err)
	}

	ids, err := s.DueFeedIDs(now)
	if err != nil {
		t.Fatalf("DueFeedIDs: %v", err)
	}
	seen := map[int]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[neverChecked] || !seen[overdue] || seen[notYet] {
		t.Errorf("DueFeedIDs = %v, want {%d, %d} only", ids, neverChecked, overdue)
	}
}

func TestSQLStoreSubs(t *testing.T) {
	s := newTestSQLStore(t)
	feedID := seedSQLFeed(t, s, "https://example.com/d")

	_, err := s.db.Exec(`INSERT INTO subs (user_id, feed_id, state, title, notify, lang) VALUES (?, ?, ?, ?, ?, ?)`,
		1, feedID, 1, "sub-title", true, "en")
	if err != nil {
		t.Fatalf("seed sub: %v", err)
	}
	_, err = s.db.Exec(`INSERT INTO subs (user_id, feed_id, state, title, notify, lang) VALUES (?, ?, ?, ?, ?, ?)`,
		2, feedID, 0, "sub-title-2", false, "fr")
	if err != nil {
		t.Fatalf("seed sub: %v", err)
	}

	active, err := s.ActiveSubs(feedID)
	if err != nil {
		t.Fatalf("ActiveSubs: %v", err)
	}
	if len(active) != 1 || active[0].UserID != 1 {
		t.Errorf("ActiveSubs = %+v, want only user 1", active)
	}

	all, err := s.AllSubs(feedID)
	if err != nil {
		t.Fatalf("AllSubs: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("AllSubs returned %d, want 2", len(all))
	}
}
