package store

import (
	"testing"
	"time"
)

func TestMemStoreGetByID(t *testing.T) {
	m := NewMemStore()
	m.AddFeed(&Feed{ID: 1, Link: "https://example.com/feed", Title: "Example"})

	got, err := m.GetByID(1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Example" {
		t.Errorf("Title = %q, want %q", got.Title, "Example")
	}

	if _, err := m.GetByID(2); err != ErrNotFound {
		t.Errorf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemStoreGetByIDReturnsCopy(t *testing.T) {
	m := NewMemStore()
	m.AddFeed(&Feed{ID: 1, EntryHashes: []string{"a", "b"}})

	got, _ := m.GetByID(1)
	got.EntryHashes[0] = "mutated"

	again, _ := m.GetByID(1)
	if again.EntryHashes[0] != "a" {
		t.Errorf("mutation through GetByID leaked into store: %v", again.EntryHashes)
	}
}

func TestMemStoreFilterIDs(t *testing.T) {
	m := NewMemStore()
	m.AddFeed(&Feed{ID: 1})
	m.AddFeed(&Feed{ID: 2})

	got, err := m.FilterIDs([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("FilterIDs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (id 3 should be silently dropped)", len(got))
	}
}

func TestMemStoreSaveOnlyTouchesDirtyFields(t *testing.T) {
	m := NewMemStore()
	m.AddFeed(&Feed{ID: 1, Title: "Original", ETag: "etag-1"})

	err := m.Save(&Feed{ID: 1, Title: "Changed", ETag: "etag-2"}, UpdateFields{Title: true})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := m.GetByID(1)
	if got.Title != "Changed" {
		t.Errorf("Title = %q, want %q", got.Title, "Changed")
	}
	if got.ETag != "etag-1" {
		t.Errorf("ETag = %q, want unchanged %q", got.ETag, "etag-1")
	}
}

func TestMemStoreSaveMissingFeed(t *testing.T) {
	m := NewMemStore()
	err := m.Save(&Feed{ID: 99}, UpdateFields{Title: true})
	if err != ErrNotFound {
		t.Errorf("Save(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemStoreActiveSubsFiltersState(t *testing.T) {
	m := NewMemStore()
	m.AddSub(&Sub{UserID: 1, FeedID: 10, State: 1})
	m.AddSub(&Sub{UserID: 2, FeedID: 10, State: 0})

	active, err := m.ActiveSubs(10)
	if err != nil {
		t.Fatalf("ActiveSubs: %v", err)
	}
	if len(active) != 1 || active[0].UserID != 1 {
		t.Errorf("ActiveSubs = %+v, want only user 1", active)
	}

	all, err := m.AllSubs(10)
	if err != nil {
		t.Fatalf("AllSubs: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("AllSubs returned %d, want 2", len(all))
	}
}

func TestMemStoreDueFeedIDs(t *testing.T) {
	m := NewMemStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.AddFeed(&Feed{ID: 1}) // never checked: due
	m.AddFeed(&Feed{ID: 2, NextCheckTime: now.Add(-time.Minute)}) // overdue
	m.AddFeed(&Feed{ID: 3, NextCheckTime: now.Add(time.Hour)})    // not due yet

	ids, err := m.DueFeedIDs(now)
	if err != nil {
		t.Fatalf("DueFeedIDs: %v", err)
	}

	seen := map[int]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[1] || !seen[2] || seen[3] {
		t.Errorf("DueFeedIDs = %v, want {1, 2}", ids)
	}
}
