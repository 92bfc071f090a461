package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// KeyedRateLimiter holds a token bucket per client key. Buckets that have
// not been used for the idle period are dropped.
type KeyedRateLimiter struct {
	limiters *cache.Cache
	idle     time.Duration
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a KeyedRateLimiter.
func NewKeyedRateLimiter(r rate.Limit, b int, idle time.Duration) *KeyedRateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &KeyedRateLimiter{
		limiters: cache.New(idle, 2*idle),
		idle:     idle,
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (l *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, found := l.limiters.Get(key); found {
		limiter := v.(*rate.Limiter)
		l.limiters.Set(key, limiter, l.idle)
		return limiter
	}

	limiter := rate.NewLimiter(l.r, l.b)
	if err := l.limiters.Add(key, limiter, l.idle); err != nil {
		// Another request created it first.
		if v, found := l.limiters.Get(key); found {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter limits requests per authenticated identity, or per client IP
// for requests that carry none.
func RateLimiter(l *KeyedRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if id, ok := Identity(c); ok {
			key = "id:" + id.ID
		}
		if !l.GetLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"kind": "RateLimited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
