// Package fetch implements the Fetcher external collaborator: conditional
// HTTP retrieval of a feed document plus wire-format parsing into the
// RSSData shape the monitor core consumes.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxBodySize bounds how much of a feed response we'll read, so a
// malicious or misconfigured server can't exhaust memory or bandwidth.
const maxBodySize = 10 * 1024 * 1024

// HTTPClient is the seam tests substitute to avoid real network calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebResponse carries the response-side cache metadata the UpdateDetector's
// next-check-time derivation consumes (spec §4.F.1).
type WebResponse struct {
	ETag         string
	Expires      time.Time
	Now          time.Time
	LastModified string
	MaxAgeSecs   int
}

// WebError is returned embedded in WebFeed rather than as a Go error so the
// caller can distinguish "request completed with a non-2xx/network failure"
// from "context was cancelled".
type WebError struct {
	Message string
}

func (e *WebError) Error() string { return e.Message }

// WebFeed is the Fetcher's result shape, named directly after spec §6.
type WebFeed struct {
	Status      int
	RSSD        *RSSData
	WebResponse WebResponse
	CFCacheStatus string
	URL         string
	Err         *WebError
}

// Fetcher is the external collaborator spec §6 pins as `feed_get`.
type Fetcher interface {
	FeedGet(ctx context.Context, url string, ifNoneMatch, ifModifiedSince string) (*WebFeed, error)
}

// HTTPFetcher is the production Fetcher: SSRF-guarded, rate-limited,
// conditional-header-aware HTTP retrieval with multi-format XML parsing.
type HTTPFetcher struct {
	validator   *URLValidator
	rateLimiter *DomainRateLimiter
	client      HTTPClient // non-nil only for tests; else validator builds a secure client per call
}

// NewHTTPFetcher builds a Fetcher with SSRF protection and the given
// domain rate limiter (pass nil to disable rate limiting, e.g. in tests).
func NewHTTPFetcher(rateLimiter *DomainRateLimiter) *HTTPFetcher {
	return &HTTPFetcher{
		validator:   NewURLValidator(),
		rateLimiter: rateLimiter,
	}
}

// SetHTTPClient overrides the HTTP client, bypassing SSRF validation and
// rate limiting; for tests only.
func (f *HTTPFetcher) SetHTTPClient(client HTTPClient) {
	f.client = client
}

// FeedGet performs a single conditional GET and parses the result.
func (f *HTTPFetcher) FeedGet(ctx context.Context, url, ifNoneMatch, ifModifiedSince string) (*WebFeed, error) {
	if f.client == nil {
		if err := f.validator.Validate(ctx, url); err != nil {
			return &WebFeed{URL: url, Err: &WebError{Message: fmt.Sprintf("blocked: %v", err)}}, nil
		}
		if f.rateLimiter != nil && !f.rateLimiter.Allow(url) {
			return &WebFeed{URL: url, Err: &WebError{Message: "rate limited"}}, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; feedmonitor/1.0)")
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	if ifModifiedSince != "" {
		req.Header.Set("If-Modified-Since", ifModifiedSince)
	}

	client := f.client
	if client == nil {
		client = f.validator.SecureClient(30 * time.Second)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &WebFeed{URL: url, Err: &WebError{Message: err.Error()}}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	now := time.Now().UTC()

	if resp.StatusCode == http.StatusNotModified {
		return &WebFeed{
			Status: resp.StatusCode,
			URL:    url,
			WebResponse: WebResponse{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				Now:          now,
				Expires:      parseHTTPTime(resp.Header.Get("Expires")),
				MaxAgeSecs:   parseMaxAge(resp.Header.Get("Cache-Control")),
			},
			CFCacheStatus: resp.Header.Get("cf-cache-status"),
		}, nil
	}

	if resp.StatusCode >= 400 {
		return &WebFeed{
			Status: resp.StatusCode,
			URL:    url,
			Err:    &WebError{Message: fmt.Sprintf("HTTP %d", resp.StatusCode)},
		}, nil
	}

	limited := io.LimitReader(resp.Body, maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return &WebFeed{URL: url, Err: &WebError{Message: fmt.Sprintf("read body: %v", err)}}, nil
	}
	if len(body) > maxBodySize {
		return &WebFeed{URL: url, Err: &WebError{Message: "feed exceeds maximum size"}}, nil
	}

	body, err = convertToUTF8(body)
	if err != nil {
		return &WebFeed{URL: url, Err: &WebError{Message: fmt.Sprintf("charset conversion: %v", err)}}, nil
	}

	rssData, err := parseDocument(body)
	if err != nil {
		return &WebFeed{URL: url, Err: &WebError{Message: err.Error()}}, nil
	}
	normalizeTitles(rssData)

	return &WebFeed{
		Status: resp.StatusCode,
		RSSD:   rssData,
		URL:    url,
		WebResponse: WebResponse{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Now:          now,
			Expires:      parseHTTPTime(resp.Header.Get("Expires")),
			MaxAgeSecs:   parseMaxAge(resp.Header.Get("Cache-Control")),
		},
		CFCacheStatus: resp.Header.Get("cf-cache-status"),
	}, nil
}

// normalizeTitles title-cases any ALL-CAPS feed/entry titles, a cosmetic
// cleanup some low-quality feeds need.
func normalizeTitles(d *RSSData) {
	caser := cases.Title(language.English)
	if isShout(d.Feed.Title) {
		d.Feed.Title = caser.String(strings.ToLower(d.Feed.Title))
	}
	for i := range d.Entries {
		if isShout(d.Entries[i].Title) {
			d.Entries[i].Title = caser.String(strings.ToLower(d.Entries[i].Title))
		}
	}
}

func isShout(s string) bool {
	return len(s) > 8 && s == strings.ToUpper(s) && s != strings.ToLower(s)
}

// NormalizeTitle collapses interior whitespace runs (including the
// non-breaking spaces and stray newlines/tabs HTML-sourced titles carry)
// into single spaces and trims the ends.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

func parseHTTPTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseMaxAge(cacheControl string) int {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "max-age=") {
			if secs, err := strconv.Atoi(strings.TrimPrefix(part, "max-age=")); err == nil {
				return secs
			}
		}
	}
	return 0
}
