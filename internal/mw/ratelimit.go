package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// pruneAfter is how long an IP's limiter may sit idle before it is dropped.
const pruneAfter = time.Hour

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Idle entries are pruned
// so the map stays bounded on public endpoints.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*ipLimiter
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*ipLimiter),
		r:   r,
		b:   b,
	}
}

// Allow reports whether a request from ip may proceed.
func (i *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	i.mu.Lock()
	entry, ok := i.ips[ip]
	if !ok {
		i.pruneLocked(now)
		entry = &ipLimiter{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = entry
	}
	entry.lastSeen = now
	i.mu.Unlock()

	return entry.limiter.Allow()
}

func (i *IPRateLimiter) pruneLocked(now time.Time) {
	for ip, entry := range i.ips {
		if now.Sub(entry.lastSeen) > pruneAfter {
			delete(i.ips, ip)
		}
	}
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
