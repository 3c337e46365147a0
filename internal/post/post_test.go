package post

import (
	"strings"
	"testing"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
)

func TestGetPostFromEntryRendersTitleAndLink(t *testing.T) {
	entry := fetch.Entry{
		Title:   "Hello <world>",
		Link:    "https://example.com/p1",
		Content: "<p>body text</p>",
	}

	p, err := GetPostFromEntry(entry, "My Feed", "https://example.com")
	if err != nil {
		t.Fatalf("GetPostFromEntry: %v", err)
	}
	if !strings.Contains(p.Text, "Hello &lt;world&gt;") {
		t.Errorf("Text = %q, want escaped title", p.Text)
	}
	if !strings.Contains(p.Text, "body text") {
		t.Errorf("Text = %q, want stripped body", p.Text)
	}
	if !strings.Contains(p.Text, "https://example.com/p1") {
		t.Errorf("Text = %q, want link", p.Text)
	}
}

func TestGetPostFromEntryFallsBackToDescription(t *testing.T) {
	entry := fetch.Entry{Title: "T", Description: "desc only"}
	p, err := GetPostFromEntry(entry, "Feed", "")
	if err != nil {
		t.Fatalf("GetPostFromEntry: %v", err)
	}
	if !strings.Contains(p.Text, "desc only") {
		t.Errorf("Text = %q, want description fallback", p.Text)
	}
}

func TestGetPostFromEntryUntitled(t *testing.T) {
	p, err := GetPostFromEntry(fetch.Entry{}, "Feed", "")
	if err != nil {
		t.Fatalf("GetPostFromEntry: %v", err)
	}
	if p.Title != "(untitled)" {
		t.Errorf("Title = %q, want (untitled)", p.Title)
	}
}

func TestDeactivationNoticeIncludesReason(t *testing.T) {
	p := DeactivationNotice("My Feed", "https://example.com", "too many consecutive errors")
	if !strings.Contains(p.Text, "too many consecutive errors") {
		t.Errorf("Text = %q, want reason included", p.Text)
	}
}
