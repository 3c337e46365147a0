package httpapi

import (
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// securityHeaders sets the response headers appropriate for a JSON-only
// operator surface — no CSP is needed since nothing here renders HTML.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// ipRateLimiter throttles requests per client IP, so the unauthenticated
// debug/metrics surface can't be hammered into starving the process it's
// meant to be observing.
type ipRateLimiter struct {
	mu      sync.Mutex
	limiter map[string]*rate.Limiter
	r       rate.Limit
	b       int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{limiter: make(map[string]*rate.Limiter), r: r, b: b}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.limiter[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiter[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(clientIP(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// clientIP extracts the request's IP from RemoteAddr, never from a
// client-controlled header — this process has no reverse proxy in front
// of it that would need an X-Forwarded-For exception.
func clientIP(c *gin.Context) string {
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}
