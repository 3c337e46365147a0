package fetch

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainRateLimiter throttles outgoing fetches per-domain, independent of
// the per-feed scheduling cadence, so a burst of feeds on one host can't
// hammer it.
type DomainRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter

	requestsPerMinute int
	burstSize         int
}

// NewDomainRateLimiter builds a limiter with the given requests-per-minute
// and burst allowance, applied independently to each domain seen.
func NewDomainRateLimiter(requestsPerMinute, burstSize int) *DomainRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if burstSize <= 0 {
		burstSize = 1
	}
	return &DomainRateLimiter{
		limiters:          make(map[string]*rate.Limiter),
		requestsPerMinute: requestsPerMinute,
		burstSize:         burstSize,
	}
}

// Allow reports whether a request to feedURL's domain may proceed now.
func (d *DomainRateLimiter) Allow(feedURL string) bool {
	domain := extractDomain(feedURL)
	if domain == "" {
		return false
	}
	return d.limiterFor(domain).Allow()
}

func (d *DomainRateLimiter) limiterFor(domain string) *rate.Limiter {
	d.mu.RLock()
	limiter, ok := d.limiters[domain]
	d.mu.RUnlock()
	if ok {
		return limiter
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if limiter, ok := d.limiters[domain]; ok {
		return limiter
	}

	interval := time.Minute / time.Duration(d.requestsPerMinute)
	limiter = rate.NewLimiter(rate.Every(interval), d.burstSize)
	d.limiters[domain] = limiter
	return limiter
}

// CleanupIdle drops limiters currently at full capacity, bounding memory use
// across the lifetime of a long-running process.
func (d *DomainRateLimiter) CleanupIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for domain, limiter := range d.limiters {
		if limiter.Tokens() >= float64(d.burstSize) {
			delete(d.limiters, domain)
		}
	}
}

func extractDomain(feedURL string) string {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	domain := strings.ToLower(parsed.Host)
	return strings.TrimPrefix(domain, "www.")
}
