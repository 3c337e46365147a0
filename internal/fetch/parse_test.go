package fetch

import "testing"

func TestParseDocumentRSS(t *testing.T) {
	d, err := parseDocument([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("parseDocument: %v", err)
	}
	if d.Feed.Title != "Example Feed" {
		t.Errorf("Feed.Title = %q", d.Feed.Title)
	}
	if len(d.Entries) != 1 || d.Entries[0].Title != "First post" {
		t.Errorf("Entries = %+v", d.Entries)
	}
}

func TestParseDocumentAtom(t *testing.T) {
	const atom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Atom Feed</title>
<generator>RSSHub</generator>
<updated>2024-01-01T00:00:00Z</updated>
<entry>
<title>Atom entry</title>
<link href="https://example.com/a1"/>
<published>2024-01-01T00:00:00Z</published>
<content type="html">hello</content>
</entry>
</feed>`

	d, err := parseDocument([]byte(atom))
	if err != nil {
		t.Fatalf("parseDocument: %v", err)
	}
	if d.Feed.Generator != "RSSHub" {
		t.Errorf("Generator = %q, want RSSHub", d.Feed.Generator)
	}
	if len(d.Entries) != 1 || d.Entries[0].Link != "https://example.com/a1" {
		t.Errorf("Entries = %+v", d.Entries)
	}
	if d.Entries[0].Content != "hello" {
		t.Errorf("Content = %q", d.Entries[0].Content)
	}
}

func TestParseDocumentRDF(t *testing.T) {
	const rdf = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
<channel><title>RDF Feed</title></channel>
<item><title>RDF entry</title><link>https://example.com/r1</link></item>
</rdf:RDF>`

	d, err := parseDocument([]byte(rdf))
	if err != nil {
		t.Fatalf("parseDocument: %v", err)
	}
	if d.Feed.Title != "RDF Feed" {
		t.Errorf("Feed.Title = %q", d.Feed.Title)
	}
	if len(d.Entries) != 1 || d.Entries[0].Link != "https://example.com/r1" {
		t.Errorf("Entries = %+v", d.Entries)
	}
}

func TestParseDocumentInvalid(t *testing.T) {
	if _, err := parseDocument([]byte("garbage")); err == nil {
		t.Fatal("expected an error for unparseable input")
	}
}

func TestParseTimeFallsBackToZero(t *testing.T) {
	if got := parseTime("not a time"); !got.IsZero() {
		t.Errorf("parseTime(garbage) = %v, want zero value", got)
	}
}
