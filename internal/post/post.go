// Package post implements the Parser external collaborator: rendering a
// fetched entry into the message that gets delivered to subscribers.
package post

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeffreyp/feedmonitor/internal/fetch"
)

// Post is the rendered form of one feed entry, ready for transport.
type Post struct {
	Title     string
	FeedTitle string
	Link      string
	Author    string
	Text      string // final HTML-formatted message body
}

// GetPostFromEntry renders an entry into a Post, named after spec §6's
// `get_post_from_entry(entry, feed_title, feed_link)`.
func GetPostFromEntry(entry fetch.Entry, feedTitle, feedLink string) (Post, error) {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = "(untitled)"
	}

	body := stripHTML(entry.Content)
	if body == "" {
		body = stripHTML(entry.Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(title))
	if feedTitle != "" {
		fmt.Fprintf(&b, "via %s\n\n", html.EscapeString(feedTitle))
	}
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	if entry.Link != "" {
		fmt.Fprintf(&b, `<a href="%s">Read more</a>`, html.EscapeString(entry.Link))
	}

	return Post{
		Title:     title,
		FeedTitle: feedTitle,
		Link:      entry.Link,
		Author:    entry.Author,
		Text:      b.String(),
	}, nil
}

// ErrorPost builds the best-effort diagnostic Post sent to the operator
// logging channel when rendering an entry fails (spec §4.G.1). Delivery
// failures do not produce an ErrorPost; DeliveryFanout logs them or returns
// them to its caller.
func ErrorPost(message, feedTitle, link string) Post {
	return Post{
		Title:     "Rendering error",
		FeedTitle: feedTitle,
		Link:      link,
		Text:      fmt.Sprintf("%s<br><br>%s", html.EscapeString(message), html.EscapeString(link)),
	}
}

// DeactivationNotice builds the localized "feed deactivated" message
// delivered to every active subscriber when a feed crosses the
// deactivation threshold (spec §4.F.4, §7).
func DeactivationNotice(feedTitle, feedLink, localizedReason string) Post {
	return Post{
		Title:     "Feed deactivated",
		FeedTitle: feedTitle,
		Link:      feedLink,
		Text: fmt.Sprintf("<b>%s</b> has been deactivated: %s",
			html.EscapeString(feedTitle), html.EscapeString(localizedReason)),
	}
}

// stripHTML reduces a description/content field to plain-ish text. Entries
// from RSS/Atom feeds frequently carry raw HTML in these fields; every tag
// is stripped and only the text between tags is kept.
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
