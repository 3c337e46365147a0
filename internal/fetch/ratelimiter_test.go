package fetch

import "testing"

func TestDomainRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	d := NewDomainRateLimiter(60, 2)

	if !d.Allow("https://example.com/feed1.xml") {
		t.Fatal("first request should be allowed")
	}
	if !d.Allow("https://example.com/feed2.xml") {
		t.Fatal("second request (same domain, within burst) should be allowed")
	}
	if d.Allow("https://example.com/feed3.xml") {
		t.Fatal("third request should be throttled once burst is exhausted")
	}
}

func TestDomainRateLimiterIsolatesDomains(t *testing.T) {
	d := NewDomainRateLimiter(60, 1)

	if !d.Allow("https://a.example.com/feed.xml") {
		t.Fatal("first domain should be allowed")
	}
	if !d.Allow("https://b.example.com/feed.xml") {
		t.Fatal("second domain should have its own independent budget")
	}
}

func TestDomainRateLimiterInvalidURL(t *testing.T) {
	d := NewDomainRateLimiter(60, 1)
	if d.Allow("://not a url") {
		t.Fatal("expected invalid URL to be rejected")
	}
}

func TestDomainRateLimiterStripsWWWPrefix(t *testing.T) {
	if got := extractDomain("https://www.example.com/feed.xml"); got != "example.com" {
		t.Errorf("extractDomain = %q, want example.com", got)
	}
}
