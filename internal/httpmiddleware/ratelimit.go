package httpmiddleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// DeviceHeader identifies the pushing device; requests without it are keyed
// by client IP.
const DeviceHeader = "X-Device-ID"

// TokenBucket is an in-memory per-client rate limiter. State is per process,
// so each API replica enforces its own budget.
type TokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter holding capacity tokens per client,
// refilled at perMinute. A non-positive perMinute disables limiting.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns a gin handler enforcing per-client limits.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(DeviceHeader))
		if key == "" {
			key = c.ClientIP()
		}
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
