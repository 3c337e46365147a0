package fetch

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Entry is one syndication item, in whatever form the wire format produced
// it. It carries everything the hashing and post-rendering layers need.
type Entry struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Published   string // raw, as found on the wire
	PublishedAt time.Time
}

// FeedMeta is the subset of channel/feed-level metadata the cache-hint and
// post-rendering logic consult.
type FeedMeta struct {
	Title       string
	Description string
	Generator   string // e.g. "RSSHub"
	Updated     string // raw channel-level "updated"/"lastBuildDate" value
	TTLMinutes  string // raw <ttl> value, decimal minutes per RSS 2.0
}

// RSSData is the parsed document: spec §6's `rss_d`.
type RSSData struct {
	Feed    FeedMeta
	Entries []Entry
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Description   string    `xml:"description"`
	Generator     string    `xml:"generator"`
	LastBuildDate string    `xml:"lastBuildDate"`
	TTL           string    `xml:"ttl"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author"`
	PubDate     string `xml:"pubDate"`
	Content     string `xml:"encoded"`
}

type rdfDoc struct {
	XMLName xml.Name   `xml:"RDF"`
	Channel rdfChannel `xml:"channel"`
	Items   []rdfItem  `xml:"item"`
}

type rdfChannel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
}

type rdfItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Date        string `xml:"date"`
	Creator     string `xml:"creator"`
}

type atomDoc struct {
	XMLName  xml.Name    `xml:"feed"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle"`
	Generator string     `xml:"generator"`
	Updated  string      `xml:"updated"`
	Entries  []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string      `xml:"title"`
	Link      atomLink    `xml:"link"`
	Summary   string      `xml:"summary"`
	Content   atomContent `xml:"content"`
	Author    atomAuthor  `xml:"author"`
	Published string      `xml:"published"`
	Updated   string      `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

type atomContent struct {
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// parseDocument tries RSS 2.0, then RDF/RSS 1.0, then Atom, in that order
// (mirrors the wire-format prevalence the teacher's fetcher assumes).
func parseDocument(body []byte) (*RSSData, error) {
	body = preprocessMediaNamespaceConflicts(body)

	var rss rssDoc
	if err := xml.Unmarshal(body, &rss); err == nil && rss.XMLName.Local == "rss" {
		return fromRSS(&rss), nil
	}

	var rdf rdfDoc
	if err := xml.Unmarshal(body, &rdf); err == nil && rdf.XMLName.Local == "RDF" {
		return fromRDF(&rdf), nil
	}

	var atom atomDoc
	if err := xml.Unmarshal(body, &atom); err == nil && atom.XMLName.Local == "feed" {
		return fromAtom(&atom), nil
	}

	return nil, fmt.Errorf("unsupported feed format or invalid XML")
}

func fromRSS(d *rssDoc) *RSSData {
	entries := make([]Entry, len(d.Channel.Items))
	for i, item := range d.Channel.Items {
		entries[i] = Entry{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Author:      item.Author,
			Published:   item.PubDate,
			PublishedAt: parseTime(item.PubDate),
		}
	}
	return &RSSData{
		Feed: FeedMeta{
			Title:       d.Channel.Title,
			Description: d.Channel.Description,
			Generator:   d.Channel.Generator,
			Updated:     d.Channel.LastBuildDate,
			TTLMinutes:  d.Channel.TTL,
		},
		Entries: entries,
	}
}

func fromRDF(d *rdfDoc) *RSSData {
	entries := make([]Entry, len(d.Items))
	for i, item := range d.Items {
		entries[i] = Entry{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Author:      item.Creator,
			Published:   item.Date,
			PublishedAt: parseTime(item.Date),
		}
	}
	return &RSSData{
		Feed: FeedMeta{
			Title:       d.Channel.Title,
			Description: d.Channel.Description,
		},
		Entries: entries,
	}
}

func fromAtom(d *atomDoc) *RSSData {
	entries := make([]Entry, len(d.Entries))
	for i, e := range d.Entries {
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		content := e.Content.Content
		if content == "" {
			content = e.Summary
		}
		entries[i] = Entry{
			Title:       e.Title,
			Link:        e.Link.Href,
			Description: e.Summary,
			Content:     content,
			Author:      e.Author.Name,
			Published:   published,
			PublishedAt: parseTime(published),
		}
	}
	return &RSSData{
		Feed: FeedMeta{
			Title:     d.Title,
			Generator: d.Generator,
			Updated:   d.Updated,
		},
		Entries: entries,
	}
}

// parseTime tries RFC-2822 then RFC-3339/ISO-8601, falling back to the zero
// value when neither matches; callers treat the zero value as "unknown".
func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// preprocessMediaNamespaceConflicts strips a bare xmlns:media declaration
// some feeds emit without a matching prefix use, which otherwise trips the
// encoding/xml decoder on certain RSS variants.
func preprocessMediaNamespaceConflicts(body []byte) []byte {
	return bytes.ReplaceAll(body, []byte(`xmlns:media="http://search.yahoo.com/mrss/"`), []byte(""))
}

// convertToUTF8 detects and converts Latin-1 encoded bodies to UTF-8; a body
// that already declares utf-8 (or declares nothing) passes through.
func convertToUTF8(body []byte) ([]byte, error) {
	if !bytes.Contains(body, []byte(`encoding="ISO-8859-1"`)) && !bytes.Contains(body, []byte(`encoding="iso-8859-1"`)) {
		return body, nil
	}
	decoder := charmap.ISO8859_1.NewDecoder()
	out, err := io.ReadAll(decoder.Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, err
	}
	return bytes.ReplaceAll(out, []byte(`ISO-8859-1`), []byte(`UTF-8`)), nil
}
