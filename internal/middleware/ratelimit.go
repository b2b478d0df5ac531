package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns per-client-IP rate limiting middleware using token
// buckets: each client gets a bucket that refills at rps tokens per second up
// to burst tokens, one token per request, 429 when empty. It guards the
// generation endpoint, where every request costs a paid provider call.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}

		client := c.ClientIP()

		mu.Lock()
		limiter, exists := limiters[client]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[client] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
